package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func dialWatch(t *testing.T, ts *httptest.Server, docID doc.Identifier) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws/documents/" + docID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWatchReceivesChangeEvents(t *testing.T) {
	ts := newTestServer(t)
	d := createDocument(t, ts, "Watched")

	conn := dialWatch(t, ts, d.ID)

	title := "Live"
	resp, _ := request(t, ts, http.MethodPut, "/documents/"+d.ID.String()+"/sections/hero",
		doc.SectionPatch{Title: &title})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev changeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "section", ev.Type)
	assert.Equal(t, d.ID.String(), ev.DocumentID)
	assert.Equal(t, "hero", ev.Section)
}

func TestWatchUnknownDocument(t *testing.T) {
	ts := newTestServer(t)

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws/documents/" + doc.NewDurableID().String()
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchScopedToDocument(t *testing.T) {
	ts := newTestServer(t)
	watched := createDocument(t, ts, "Mine")
	other := createDocument(t, ts, "Other")

	conn := dialWatch(t, ts, watched.ID)

	title := "Elsewhere"
	resp, _ := request(t, ts, http.MethodPut, "/documents/"+other.ID.String()+"/sections/hero",
		doc.SectionPatch{Title: &title})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var ev changeEvent
	err := conn.ReadJSON(&ev)
	assert.Error(t, err, "events for other documents must not be delivered")
}
