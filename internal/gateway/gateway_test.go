package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/cache"
	"github.com/aivexl/tamuu-sub000/internal/doc"
	"github.com/aivexl/tamuu-sub000/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	tiered := cache.NewTiered(cache.NewMemory())
	srv, err := New(st, tiered, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		tiered.Close()
		_ = st.Close()
	})
	return ts
}

// request issues a JSON request and returns status, headers and decoded
// body bytes.
func request(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

// createDocument makes a fresh document and returns it.
func createDocument(t *testing.T, ts *httptest.Server, name string) doc.Document {
	t.Helper()

	resp, raw := request(t, ts, http.MethodPost, "/documents", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var d doc.Document
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

// createElement adds an element to the hero section and returns it.
func createElement(t *testing.T, ts *httptest.Server, docID doc.Identifier, el doc.Element) doc.Element {
	t.Helper()

	resp, raw := request(t, ts, http.MethodPost, "/documents/"+docID.String()+"/sections/hero/elements", el)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created doc.Element
	require.NoError(t, json.Unmarshal(raw, &created))
	return created
}

func getDocument(t *testing.T, ts *httptest.Server, docID doc.Identifier) (doc.Document, string) {
	t.Helper()

	resp, raw := request(t, ts, http.MethodGet, "/documents/"+docID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var d doc.Document
	require.NoError(t, json.Unmarshal(raw, &d))
	return d, resp.Header.Get("X-Cache")
}
