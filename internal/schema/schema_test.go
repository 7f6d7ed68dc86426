package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestValidateSectionKey(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		key     doc.SectionKey
		wantErr bool
	}{
		{"known key", doc.SectionHero, false},
		{"another known key", doc.SectionRSVP, false},
		{"unknown key", doc.SectionKey("sidebar"), true},
		{"empty key", doc.SectionKey(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSectionKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateElement(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		kind    doc.ElementKind
		payload map[string]any
		wantErr bool
	}{
		{
			name:    "valid text",
			kind:    doc.ElementText,
			payload: map[string]any{"text": "Save the date", "align": "center"},
		},
		{
			name:    "text missing required field",
			kind:    doc.ElementText,
			payload: map[string]any{"align": "center"},
			wantErr: true,
		},
		{
			name:    "unknown payload key rejected",
			kind:    doc.ElementText,
			payload: map[string]any{"text": "x", "blink": true},
			wantErr: true,
		},
		{
			name:    "wrong type rejected",
			kind:    doc.ElementText,
			payload: map[string]any{"text": 42},
			wantErr: true,
		},
		{
			name:    "valid image",
			kind:    doc.ElementImage,
			payload: map[string]any{"src": "photos/hero.jpg", "fit": "cover"},
		},
		{
			name:    "invalid enum value",
			kind:    doc.ElementImage,
			payload: map[string]any{"src": "a.jpg", "fit": "stretch"},
			wantErr: true,
		},
		{
			name: "valid form",
			kind: doc.ElementForm,
			payload: map[string]any{
				"fields": []any{
					map[string]any{"name": "guest", "kind": "text", "required": true},
					map[string]any{"name": "attending", "kind": "select", "options": []any{"yes", "no"}},
				},
			},
		},
		{
			name:    "unknown kind",
			kind:    doc.ElementKind("video"),
			payload: map[string]any{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateElement(tt.kind, tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePayloadPatch_NilPayloadSkipped(t *testing.T) {
	v := newValidator(t)

	err := v.ValidatePayloadPatch(doc.ElementText, doc.ElementPatch{})
	assert.NoError(t, err, "patch without payload has nothing to validate")
}

func TestDefault_Reused(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
