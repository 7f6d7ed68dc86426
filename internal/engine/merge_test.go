package engine

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func mergeFetched() *doc.Document {
	title := "Server Title"
	return &doc.Document{
		ID:           doc.DurableID("doc-1"),
		Name:         "Launch Party",
		Slug:         "launch-party",
		Status:       doc.StatusPublished,
		SectionOrder: []doc.SectionKey{doc.SectionHero},
		Sections: map[doc.SectionKey]doc.Section{
			doc.SectionHero: {
				Key:   doc.SectionHero,
				Title: &title,
				Elements: []doc.Element{{
					ID:      doc.DurableID("el-1"),
					Kind:    doc.ElementText,
					X:       10,
					Y:       20,
					W:       200,
					H:       50,
					ZIndex:  1,
					Payload: map[string]any{"text": "Hello"},
				}},
			},
		},
	}
}

func mergeLocal() *doc.Document {
	local := mergeFetched().Clone()
	hero := local.Sections[doc.SectionHero]
	title := "Local Title"
	hero.Title = &title
	hero.Elements[0].X = 40
	hero.Elements = append(hero.Elements, doc.Element{
		ID:      doc.Identifier{Kind: doc.KindEphemeral, Token: "e2"},
		Kind:    doc.ElementImage,
		X:       5,
		Y:       6,
		W:       7,
		H:       8,
		ZIndex:  2,
		Payload: map[string]any{"src": "x.png"},
	})
	local.Sections[doc.SectionHero] = hero
	return local
}

func TestMergeLocalScalarWins(t *testing.T) {
	merged := Merge(mergeLocal(), mergeFetched(), nil)

	hero := merged.Sections[doc.SectionHero]
	require.NotNil(t, hero.Title)
	assert.Equal(t, "Local Title", *hero.Title)
}

func TestMergeUsesFetchedWhenLocalUnset(t *testing.T) {
	local := mergeLocal()
	hero := local.Sections[doc.SectionHero]
	hero.Title = nil
	local.Sections[doc.SectionHero] = hero

	merged := Merge(local, mergeFetched(), nil)

	got := merged.Sections[doc.SectionHero]
	require.NotNil(t, got.Title)
	assert.Equal(t, "Server Title", *got.Title)
}

func TestMergeKeepsPendingCreations(t *testing.T) {
	merged := Merge(mergeLocal(), mergeFetched(), nil)

	hero := merged.Sections[doc.SectionHero]
	require.Len(t, hero.Elements, 2)
	assert.Equal(t, "tmp_e2", hero.Elements[1].ID.String())
}

func TestMergeKeepsJustAcknowledgedElements(t *testing.T) {
	// The element's creation was acknowledged mid-fetch: locally it
	// already carries the durable id, but the fetched snapshot predates
	// it. The keep set marks it as not yet confirmed absent.
	local := mergeLocal()
	hero := local.Sections[doc.SectionHero]
	hero.Elements[1].ID = doc.DurableID("el-2")
	local.Sections[doc.SectionHero] = hero

	merged := Merge(local, mergeFetched(), map[string]bool{"el-2": true})

	got := merged.Sections[doc.SectionHero]
	require.Len(t, got.Elements, 2)
	assert.Equal(t, "el-2", got.Elements[1].ID.String())

	// Without the keep set the same element is treated as remotely
	// deleted and dropped.
	dropped := Merge(local, mergeFetched(), nil)
	assert.Len(t, dropped.Sections[doc.SectionHero].Elements, 1)
}

func TestMergeDropsRemotelyDeletedDurableElements(t *testing.T) {
	fetched := mergeFetched()
	hero := fetched.Sections[doc.SectionHero]
	hero.Elements = nil
	fetched.Sections[doc.SectionHero] = hero

	merged := Merge(mergeLocal(), fetched, nil)

	got := merged.Sections[doc.SectionHero]
	require.Len(t, got.Elements, 1, "durable element deleted remotely must go; ephemeral stays")
	assert.True(t, got.Elements[0].ID.IsEphemeral())
}

func TestMergeLocalElementFieldsWin(t *testing.T) {
	merged := Merge(mergeLocal(), mergeFetched(), nil)

	hero := merged.Sections[doc.SectionHero]
	idx := hero.FindElement(doc.DurableID("el-1"))
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 40, hero.Elements[idx].X)
	assert.Equal(t, 20, hero.Elements[idx].Y)
}

func TestMergeKeepsLocalOnlySections(t *testing.T) {
	local := mergeLocal()
	visible := true
	local.Sections[doc.SectionRSVP] = doc.Section{Key: doc.SectionRSVP, Visible: &visible}
	local.SectionOrder = append(local.SectionOrder, doc.SectionRSVP)

	merged := Merge(local, mergeFetched(), nil)

	_, ok := merged.Sections[doc.SectionRSVP]
	assert.True(t, ok)
	assert.Contains(t, merged.SectionOrder, doc.SectionRSVP)
}

func TestMergeIdempotentForStableFetch(t *testing.T) {
	fetched := mergeFetched()
	once := Merge(mergeLocal(), fetched, nil)
	twice := Merge(once, fetched, nil)

	a, err := canonicalDocument(once)
	require.NoError(t, err)
	b, err := canonicalDocument(twice)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	local := mergeLocal()
	fetched := mergeFetched()
	localBefore, err := canonicalDocument(local)
	require.NoError(t, err)
	fetchedBefore, err := canonicalDocument(fetched)
	require.NoError(t, err)

	Merge(local, fetched, nil)

	localAfter, err := canonicalDocument(local)
	require.NoError(t, err)
	fetchedAfter, err := canonicalDocument(fetched)
	require.NoError(t, err)
	assert.Equal(t, string(localBefore), string(localAfter))
	assert.Equal(t, string(fetchedBefore), string(fetchedAfter))
}

func TestMergeGolden(t *testing.T) {
	merged := Merge(mergeLocal(), mergeFetched(), nil)

	canon, err := canonicalDocument(merged)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "merge_document", canon)
}

// canonicalDocument renders a document as canonical JSON for comparison.
func canonicalDocument(d *doc.Document) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return doc.MarshalCanonical(generic)
}
