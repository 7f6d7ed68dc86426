package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func openFixture(t *testing.T) (*Store, *doc.Document) {
	t.Helper()
	s := NewStore(nil)
	d := &doc.Document{
		ID:     doc.NewDurableID(),
		Name:   "fixture",
		Status: doc.StatusDraft,
		Sections: map[doc.SectionKey]doc.Section{
			doc.SectionHero: {
				Key: doc.SectionHero,
				Elements: []doc.Element{
					{ID: doc.DurableID("el-1"), Kind: doc.ElementText, X: 10, Y: 10, Payload: map[string]any{"text": "hi"}},
				},
			},
		},
		SectionOrder: []doc.SectionKey{doc.SectionHero},
	}
	s.Open(d)
	return s, d
}

func TestSnapshot_IsIsolatedCopy(t *testing.T) {
	s, d := openFixture(t)

	snap, ok := s.Snapshot(d.ID)
	require.True(t, ok)

	// Mutating the snapshot must not leak into the store
	snap.Name = "mutated"
	snap.Sections[doc.SectionHero].Elements[0].Payload["text"] = "mutated"

	again, ok := s.Snapshot(d.ID)
	require.True(t, ok)
	assert.Equal(t, "fixture", again.Name)
	assert.Equal(t, "hi", again.Sections[doc.SectionHero].Elements[0].Payload["text"])
}

func TestApplyElement_SynchronouslyVisible(t *testing.T) {
	s, d := openFixture(t)

	ok := s.ApplyElement(d.ID, doc.DurableID("el-1"), doc.ElementPatch{X: intp(140), Y: intp(160)})
	require.True(t, ok)

	snap, _ := s.Snapshot(d.ID)
	el := snap.Sections[doc.SectionHero].Elements[0]
	assert.Equal(t, 140, el.X)
	assert.Equal(t, 160, el.Y)
}

func TestApplyElement_UnknownElement(t *testing.T) {
	s, d := openFixture(t)

	ok := s.ApplyElement(d.ID, doc.DurableID("ghost"), doc.ElementPatch{X: intp(1)})
	assert.False(t, ok)
}

func TestApplySection_LazyCreation(t *testing.T) {
	s, d := openFixture(t)

	ok := s.ApplySection(d.ID, doc.SectionGallery, doc.SectionPatch{Title: strp("Photos")})
	require.True(t, ok)

	snap, _ := s.Snapshot(d.ID)
	require.Contains(t, snap.Sections, doc.SectionGallery)
	assert.Equal(t, "Photos", *snap.Sections[doc.SectionGallery].Title)
	assert.Equal(t, []doc.SectionKey{doc.SectionHero, doc.SectionGallery}, snap.SectionOrder)
}

func TestSwapElementID_UpdatesSelection(t *testing.T) {
	s, d := openFixture(t)

	eph := doc.NewEphemeralID()
	require.True(t, s.InsertElement(d.ID, doc.SectionHero, doc.Element{ID: eph, Kind: doc.ElementText}))
	s.SetSelection(d.ID, []doc.Identifier{eph})

	durable := doc.DurableID("a1b2")
	require.True(t, s.SwapElementID(d.ID, eph, durable))

	_, _, found := s.ElementByID(d.ID, eph)
	assert.False(t, found, "old ephemeral id no longer resolves")

	el, key, found := s.ElementByID(d.ID, durable)
	require.True(t, found)
	assert.Equal(t, doc.SectionHero, key)
	assert.Equal(t, durable, el.ID)

	assert.Equal(t, []doc.Identifier{durable}, s.Selection(d.ID), "UI references follow the swap")
}

func TestDirtyTracking(t *testing.T) {
	s, d := openFixture(t)

	assert.False(t, s.Dirty(d.ID))
	s.MarkDirty(d.ID)
	s.MarkDirty(d.ID)
	assert.True(t, s.Dirty(d.ID))
	s.ResolveDirty(d.ID)
	assert.True(t, s.Dirty(d.ID), "dirty until every pending call resolves")
	s.ResolveDirty(d.ID)
	assert.False(t, s.Dirty(d.ID))
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	s, d := openFixture(t)

	events, cancel := s.Subscribe(d.ID)
	defer cancel()

	s.ApplyElement(d.ID, doc.DurableID("el-1"), doc.ElementPatch{X: intp(5)})

	select {
	case ev := <-events:
		assert.Equal(t, ChangeElement, ev.Kind)
		assert.Equal(t, doc.SectionHero, ev.Section)
		assert.Equal(t, doc.DurableID("el-1"), ev.Element)
	default:
		t.Fatal("expected a change event")
	}
}

func TestSubscribe_ClosedOnDocumentClose(t *testing.T) {
	s, d := openFixture(t)

	events, cancel := s.Subscribe(d.ID)
	defer cancel()

	s.Close(d.ID)

	_, open := <-events
	assert.False(t, open)

	_, ok := s.Snapshot(d.ID)
	assert.False(t, ok)
}

func TestReplace_SwapsSnapshot(t *testing.T) {
	s, d := openFixture(t)

	replacement := d.Clone()
	replacement.Name = "merged"
	s.Replace(replacement)

	snap, ok := s.Snapshot(d.ID)
	require.True(t, ok)
	assert.Equal(t, "merged", snap.Name)
}
