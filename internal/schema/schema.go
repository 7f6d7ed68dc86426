// Package schema validates template payloads against closed CUE
// definitions.
//
// The sync engine stores type-specific element payloads as free-form maps;
// this package is the gate that keeps those maps honest. Unknown section
// keys, unknown element kinds, and malformed payload shapes are rejected
// before any store write or network call.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

//go:embed schema.cue
var schemaSource string

// payloadDefs maps element kinds to their CUE payload definition.
var payloadDefs = map[doc.ElementKind]string{
	doc.ElementText:      "#TextPayload",
	doc.ElementImage:     "#ImagePayload",
	doc.ElementCountdown: "#CountdownPayload",
	doc.ElementForm:      "#FormPayload",
	doc.ElementButton:    "#ButtonPayload",
	doc.ElementShape:     "#ShapePayload",
}

// ValidationError reports a payload that failed schema validation.
type ValidationError struct {
	// Subject names what was validated ("section key", "element payload", ...).
	Subject string
	// Detail is the CUE error rendering, one finding per line.
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Detail)
}

// Validator checks payloads against the embedded schema.
//
// Thread-safety: a Validator is immutable after construction and safe for
// concurrent use. CUE compilation happens once.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

var (
	defaultOnce sync.Once
	defaultVal  *Validator
	defaultErr  error
)

// Default returns the process-wide validator for the embedded schema.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultVal, defaultErr = New()
	})
	return defaultVal, defaultErr
}

// New compiles the embedded schema into a Validator.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{ctx: ctx, schema: v}, nil
}

// ValidateSectionKey rejects keys outside the closed section vocabulary.
func (v *Validator) ValidateSectionKey(key doc.SectionKey) error {
	return v.check("section key", "#SectionKey", string(key))
}

// ValidateStatus rejects unknown lifecycle states.
func (v *Validator) ValidateStatus(status doc.Status) error {
	return v.check("status", "#Status", string(status))
}

// ValidateElement checks an element's kind and its kind-specific payload.
// A nil payload is allowed only for kinds with no required fields.
func (v *Validator) ValidateElement(kind doc.ElementKind, payload map[string]any) error {
	if err := v.check("element kind", "#ElementKind", string(kind)); err != nil {
		return err
	}
	def, ok := payloadDefs[kind]
	if !ok {
		return &ValidationError{Subject: "element kind", Detail: fmt.Sprintf("no payload schema for kind %q", kind)}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return v.check("element payload", def, payload)
}

// ValidatePayloadPatch checks a payload replacement for an existing
// element. Patches carry the full payload value, so the same shape rules
// apply as at creation.
func (v *Validator) ValidatePayloadPatch(kind doc.ElementKind, patch doc.ElementPatch) error {
	if patch.Payload == nil {
		return nil
	}
	return v.ValidateElement(kind, *patch.Payload)
}

// check unifies data with the named definition and validates concreteness.
func (v *Validator) check(subject, defPath string, data any) error {
	def := v.schema.LookupPath(cue.ParsePath(defPath))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup %s: %w", defPath, err)
	}
	unified := def.Unify(v.ctx.Encode(data))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Subject: subject, Detail: cueerrors.Details(err, nil)}
	}
	return nil
}
