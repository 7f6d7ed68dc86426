package doc

import "time"

// Status is the document lifecycle state. It conditions the cache TTL
// policy: published documents change rarely and get a long fresh window.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ValidStatuses defines the allowed lifecycle states.
var ValidStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusPublished: true,
}

// SectionKey identifies a section within a document. Keys come from a
// closed set validated by the schema package; unknown keys are a decode
// error, not silently accepted.
type SectionKey string

// Known section keys. A section is created lazily: the first mutation
// addressed to a not-yet-existing key causes an implicit creation.
const (
	SectionHero      SectionKey = "hero"
	SectionCouple    SectionKey = "couple"
	SectionEvent     SectionKey = "event"
	SectionGallery   SectionKey = "gallery"
	SectionStory     SectionKey = "story"
	SectionGift      SectionKey = "gift"
	SectionRSVP      SectionKey = "rsvp"
	SectionWishes    SectionKey = "wishes"
	SectionFooter    SectionKey = "footer"
	SectionCountdown SectionKey = "countdown"
)

// ElementKind is the type-specific payload discriminator for an element.
type ElementKind string

const (
	ElementText      ElementKind = "text"
	ElementImage     ElementKind = "image"
	ElementCountdown ElementKind = "countdown"
	ElementForm      ElementKind = "form"
	ElementButton    ElementKind = "button"
	ElementShape     ElementKind = "shape"
)

// Document is the aggregate root: sections keyed by slug, an explicit
// ordering of section keys, lifecycle status, and free-form theme metadata.
type Document struct {
	ID           Identifier             `json:"id"`
	Name         string                 `json:"name"`
	Slug         string                 `json:"slug,omitempty"`
	Status       Status                 `json:"status"`
	Theme        map[string]any         `json:"theme,omitempty"`
	Sections     map[SectionKey]Section `json:"sections"`
	SectionOrder []SectionKey           `json:"section_order"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Section belongs to exactly one document and is identified by
// (document id, section key). Optional scalars are pointers: nil means the
// field was never set locally, which is what lets merge distinguish "local
// edit" from "nobody touched it".
type Section struct {
	Key        SectionKey `json:"key"`
	Title      *string    `json:"title,omitempty"`
	Background *string    `json:"background,omitempty"`
	Visible    *bool      `json:"visible,omitempty"`
	Elements   []Element  `json:"elements"`
}

// Element is a positioned item inside a section. The Payload shape depends
// on Kind and is validated by the schema package.
type Element struct {
	ID        Identifier     `json:"id"`
	Kind      ElementKind    `json:"kind"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	W         int            `json:"w"`
	H         int            `json:"h"`
	ZIndex    int            `json:"z_index"`
	Payload   map[string]any `json:"payload,omitempty"`
	Animation *Animation     `json:"animation,omitempty"`
}

// Animation is presentation metadata carried opaquely by the engine.
// Rendering and timing are out of scope; the engine only round-trips it.
type Animation struct {
	Name     string `json:"name"`
	DelayMS  int    `json:"delay_ms,omitempty"`
	Duration int    `json:"duration_ms,omitempty"`
}

// Summary is the list-view projection of a document.
type Summary struct {
	ID        Identifier `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug,omitempty"`
	Status    Status     `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the document. Snapshots handed across
// component boundaries are always clones; raw mutable references never
// escape the owning store.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Theme = cloneMap(d.Theme)
	out.SectionOrder = append([]SectionKey(nil), d.SectionOrder...)
	out.Sections = make(map[SectionKey]Section, len(d.Sections))
	for k, s := range d.Sections {
		out.Sections[k] = s.Clone()
	}
	return &out
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	out.Title = clonePtr(s.Title)
	out.Background = clonePtr(s.Background)
	out.Visible = clonePtr(s.Visible)
	out.Elements = make([]Element, len(s.Elements))
	for i, el := range s.Elements {
		out.Elements[i] = el.Clone()
	}
	return out
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	out.Payload = cloneMap(e.Payload)
	if e.Animation != nil {
		anim := *e.Animation
		out.Animation = &anim
	}
	return out
}

// FindElement returns the index of the element with the given id, or -1.
func (s Section) FindElement(id Identifier) int {
	for i, el := range s.Elements {
		if el.ID == id {
			return i
		}
	}
	return -1
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
