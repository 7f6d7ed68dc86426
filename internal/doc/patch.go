package doc

// Patches are pointer-field partial updates: nil means "leave alone", a
// full field value (never a diff) means "set". Every mutation request
// carries full field values, so the last request to reach the store
// determines the persisted value regardless of delivery order.

// DocumentPatch is a partial update of document-level fields.
type DocumentPatch struct {
	Name   *string         `json:"name,omitempty"`
	Slug   *string         `json:"slug,omitempty"`
	Status *Status         `json:"status,omitempty"`
	Theme  *map[string]any `json:"theme,omitempty"`
}

// IsEmpty reports whether the patch sets no fields.
func (p DocumentPatch) IsEmpty() bool {
	return p.Name == nil && p.Slug == nil && p.Status == nil && p.Theme == nil
}

// Apply overlays the patch onto the document.
func (p DocumentPatch) Apply(d *Document) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Slug != nil {
		d.Slug = *p.Slug
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Theme != nil {
		d.Theme = cloneMap(*p.Theme)
	}
}

// SectionPatch is a partial update of section-level scalar properties.
type SectionPatch struct {
	Title      *string `json:"title,omitempty"`
	Background *string `json:"background,omitempty"`
	Visible    *bool   `json:"visible,omitempty"`
}

// IsEmpty reports whether the patch sets no fields.
func (p SectionPatch) IsEmpty() bool {
	return p.Title == nil && p.Background == nil && p.Visible == nil
}

// Apply overlays the patch onto the section.
func (p SectionPatch) Apply(s *Section) {
	if p.Title != nil {
		s.Title = clonePtr(p.Title)
	}
	if p.Background != nil {
		s.Background = clonePtr(p.Background)
	}
	if p.Visible != nil {
		s.Visible = clonePtr(p.Visible)
	}
}

// ElementPatch is a partial update of element fields.
type ElementPatch struct {
	X         *int            `json:"x,omitempty"`
	Y         *int            `json:"y,omitempty"`
	W         *int            `json:"w,omitempty"`
	H         *int            `json:"h,omitempty"`
	ZIndex    *int            `json:"z_index,omitempty"`
	Payload   *map[string]any `json:"payload,omitempty"`
	Animation *Animation      `json:"animation,omitempty"`
}

// IsEmpty reports whether the patch sets no fields.
func (p ElementPatch) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.W == nil && p.H == nil &&
		p.ZIndex == nil && p.Payload == nil && p.Animation == nil
}

// Apply overlays the patch onto the element.
func (p ElementPatch) Apply(e *Element) {
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}
	if p.W != nil {
		e.W = *p.W
	}
	if p.H != nil {
		e.H = *p.H
	}
	if p.ZIndex != nil {
		e.ZIndex = *p.ZIndex
	}
	if p.Payload != nil {
		e.Payload = cloneMap(*p.Payload)
	}
	if p.Animation != nil {
		anim := *p.Animation
		e.Animation = &anim
	}
}

// DiffElements computes the field-level drift between the state sent in a
// creation request and the state present locally when the response arrived.
// The returned patch carries only drifted fields; an empty patch means no
// follow-up call is needed.
//
// Payload and animation are compared via canonical serialization so that
// map ordering never produces spurious drift.
func DiffElements(sent, current Element) ElementPatch {
	var p ElementPatch
	if current.X != sent.X {
		p.X = clonePtr(&current.X)
	}
	if current.Y != sent.Y {
		p.Y = clonePtr(&current.Y)
	}
	if current.W != sent.W {
		p.W = clonePtr(&current.W)
	}
	if current.H != sent.H {
		p.H = clonePtr(&current.H)
	}
	if current.ZIndex != sent.ZIndex {
		p.ZIndex = clonePtr(&current.ZIndex)
	}
	if !CanonicalEqual(sent.Payload, current.Payload) {
		payload := cloneMap(current.Payload)
		p.Payload = &payload
	}
	if !animationsEqual(sent.Animation, current.Animation) {
		anim := *current.Animation
		p.Animation = &anim
	}
	return p
}

func animationsEqual(a, b *Animation) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		// drift only when the current side is set; dropping animation
		// entirely is not expressible as a patch
		return b == nil
	default:
		return *a == *b
	}
}
