package gateway

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func textElement(text string) doc.Element {
	return doc.Element{
		Kind:    doc.ElementText,
		X:       10,
		Y:       10,
		W:       100,
		H:       40,
		ZIndex:  1,
		Payload: map[string]any{"text": text},
	}
}

func TestUpsertSectionLazyCreation(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Sections")

	title := "Welcome"
	resp, _ := request(t, ts, http.MethodPut, "/documents/"+d.ID.String()+"/sections/hero",
		doc.SectionPatch{Title: &title})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	hero, ok := got.Sections[doc.SectionHero]
	require.True(t, ok, "first write creates the section")
	require.NotNil(t, hero.Title)
	assert.Equal(t, "Welcome", *hero.Title)
	assert.Equal(t, []doc.SectionKey{doc.SectionHero}, got.SectionOrder)
}

func TestUpsertSectionRejectsUnknownKey(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Strict")

	title := "Nope"
	resp, _ := request(t, ts, http.MethodPut, "/documents/"+d.ID.String()+"/sections/sidebar",
		doc.SectionPatch{Title: &title})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateElement(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Elements")

	created := createElement(t, ts, d.ID, textElement("hello"))
	assert.False(t, created.ID.IsZero())
	assert.False(t, created.ID.IsEphemeral(), "gateway returns the durable id")

	got, _ := getDocument(t, ts, d.ID)
	hero := got.Sections[doc.SectionHero]
	assert.GreaterOrEqual(t, hero.FindElement(created.ID), 0)
}

func TestCreateElementRejectsBadPayload(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Strict")

	el := textElement("ok")
	el.Payload = map[string]any{"nonsense": 1}
	resp, _ := request(t, ts, http.MethodPost, "/documents/"+d.ID.String()+"/sections/hero/elements", el)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateElement(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Move")
	created := createElement(t, ts, d.ID, textElement("hi"))

	x, y := 140, 160
	resp, _ := request(t, ts, http.MethodPatch,
		"/documents/"+d.ID.String()+"/elements/"+created.ID.String(),
		doc.ElementPatch{X: &x, Y: &y})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	hero := got.Sections[doc.SectionHero]
	idx := hero.FindElement(created.ID)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 140, hero.Elements[idx].X)
	assert.Equal(t, 160, hero.Elements[idx].Y)
	assert.Equal(t, 100, hero.Elements[idx].W, "untouched fields keep their value")
}

func TestUpdateElementUnknownID(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Missing")

	x := 1
	resp, _ := request(t, ts, http.MethodPatch,
		"/documents/"+d.ID.String()+"/elements/"+doc.NewDurableID().String(),
		doc.ElementPatch{X: &x})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteElement(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Remove")
	created := createElement(t, ts, d.ID, textElement("bye"))

	resp, _ := request(t, ts, http.MethodDelete,
		"/documents/"+d.ID.String()+"/elements/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	hero := got.Sections[doc.SectionHero]
	assert.Equal(t, -1, hero.FindElement(created.ID))
}

func TestSwapElementZ(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Layers")

	bottom := textElement("bottom")
	bottom.ZIndex = 1
	top := textElement("top")
	top.ZIndex = 2
	a := createElement(t, ts, d.ID, bottom)
	b := createElement(t, ts, d.ID, top)

	resp, _ := request(t, ts, http.MethodPut,
		"/documents/"+d.ID.String()+"/elements/"+a.ID.String()+"/z",
		map[string]string{"with": b.ID.String()})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	hero := got.Sections[doc.SectionHero]
	za := hero.Elements[hero.FindElement(a.ID)].ZIndex
	zb := hero.Elements[hero.FindElement(b.ID)].ZIndex
	assert.Equal(t, 2, za)
	assert.Equal(t, 1, zb)
}

func TestSetSectionOrder(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Ordered")

	for _, key := range []string{"hero", "couple", "event"} {
		title := key
		resp, _ := request(t, ts, http.MethodPut, "/documents/"+d.ID.String()+"/sections/"+key,
			doc.SectionPatch{Title: &title})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	order := []doc.SectionKey{doc.SectionEvent, doc.SectionHero, doc.SectionCouple}
	resp, _ := request(t, ts, http.MethodPut, "/documents/"+d.ID.String()+"/sections/order",
		map[string][]doc.SectionKey{"order": order})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	assert.Equal(t, order, got.SectionOrder)
}

func TestDeleteSectionRemovesElements(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Cascade")
	created := createElement(t, ts, d.ID, textElement("inside"))

	resp, _ := request(t, ts, http.MethodDelete, "/documents/"+d.ID.String()+"/sections/hero", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, _ := getDocument(t, ts, d.ID)
	_, ok := got.Sections[doc.SectionHero]
	assert.False(t, ok)
	assert.NotContains(t, got.SectionOrder, doc.SectionHero)

	x := 5
	resp, _ = request(t, ts, http.MethodPatch,
		"/documents/"+d.ID.String()+"/elements/"+created.ID.String(),
		doc.ElementPatch{X: &x})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestElementJSONRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Payload")

	el := textElement("styled")
	el.Payload = map[string]any{"text": "styled", "size": 18, "align": "center"}
	el.Animation = &doc.Animation{Name: "fade", DelayMS: 200, Duration: 800}
	created := createElement(t, ts, d.ID, el)

	got, _ := getDocument(t, ts, d.ID)
	hero := got.Sections[doc.SectionHero]
	stored := hero.Elements[hero.FindElement(created.ID)]

	var gotPayload, wantPayload any
	rawGot, _ := json.Marshal(stored.Payload)
	rawWant, _ := json.Marshal(el.Payload)
	require.NoError(t, json.Unmarshal(rawGot, &gotPayload))
	require.NoError(t, json.Unmarshal(rawWant, &wantPayload))
	assert.Equal(t, wantPayload, gotPayload)
	require.NotNil(t, stored.Animation)
	assert.Equal(t, "fade", stored.Animation.Name)
}
