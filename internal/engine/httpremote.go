package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aivexl/tamuu-sub000/internal/doc"
	"github.com/aivexl/tamuu-sub000/internal/store"
)

// RemoteError wraps a non-2xx gateway response. Status codes in the 5xx
// range and transport failures are considered transient; 4xx are not.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Transient reports whether retrying could plausibly succeed.
func (e *RemoteError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// HTTPRemote implements Remote against the gateway's JSON API.
type HTTPRemote struct {
	base   string
	client *http.Client
}

// NewHTTPRemote creates a client for the gateway at base, e.g.
// "http://localhost:8080".
func NewHTTPRemote(base string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRemote{base: strings.TrimRight(base, "/"), client: client}
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return store.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{Op: method + " " + path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

func (r *HTTPRemote) CreateDocument(ctx context.Context, d doc.Document) (doc.Document, error) {
	var created doc.Document
	err := r.do(ctx, http.MethodPost, "/documents", d, &created)
	return created, err
}

func (r *HTTPRemote) FetchDocument(ctx context.Context, id doc.Identifier) (doc.Document, error) {
	var d doc.Document
	err := r.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id.String()), nil, &d)
	return d, err
}

func (r *HTTPRemote) UpdateDocument(ctx context.Context, id doc.Identifier, patch doc.DocumentPatch) error {
	return r.do(ctx, http.MethodPatch, "/documents/"+url.PathEscape(id.String()), patch, nil)
}

func (r *HTTPRemote) DeleteDocument(ctx context.Context, id doc.Identifier) error {
	return r.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id.String()), nil, nil)
}

func (r *HTTPRemote) ListDocuments(ctx context.Context) ([]doc.Summary, error) {
	var list []doc.Summary
	err := r.do(ctx, http.MethodGet, "/documents", nil, &list)
	return list, err
}

func (r *HTTPRemote) UpsertSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey, patch doc.SectionPatch) error {
	path := fmt.Sprintf("/documents/%s/sections/%s", url.PathEscape(docID.String()), url.PathEscape(string(key)))
	return r.do(ctx, http.MethodPut, path, patch, nil)
}

func (r *HTTPRemote) DeleteSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey) error {
	path := fmt.Sprintf("/documents/%s/sections/%s", url.PathEscape(docID.String()), url.PathEscape(string(key)))
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

func (r *HTTPRemote) SetSectionOrder(ctx context.Context, docID doc.Identifier, order []doc.SectionKey) error {
	path := fmt.Sprintf("/documents/%s/sections/order", url.PathEscape(docID.String()))
	return r.do(ctx, http.MethodPut, path, map[string][]doc.SectionKey{"order": order}, nil)
}

func (r *HTTPRemote) CreateElement(ctx context.Context, docID doc.Identifier, key doc.SectionKey, e doc.Element) (doc.Identifier, error) {
	path := fmt.Sprintf("/documents/%s/sections/%s/elements",
		url.PathEscape(docID.String()), url.PathEscape(string(key)))
	var created doc.Element
	if err := r.do(ctx, http.MethodPost, path, e, &created); err != nil {
		return doc.Identifier{}, err
	}
	return created.ID, nil
}

func (r *HTTPRemote) UpdateElement(ctx context.Context, docID, elementID doc.Identifier, patch doc.ElementPatch) error {
	path := fmt.Sprintf("/documents/%s/elements/%s",
		url.PathEscape(docID.String()), url.PathEscape(elementID.String()))
	return r.do(ctx, http.MethodPatch, path, patch, nil)
}

func (r *HTTPRemote) DeleteElement(ctx context.Context, docID, elementID doc.Identifier) error {
	path := fmt.Sprintf("/documents/%s/elements/%s",
		url.PathEscape(docID.String()), url.PathEscape(elementID.String()))
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

func (r *HTTPRemote) SwapElementZ(ctx context.Context, docID, a, b doc.Identifier) error {
	path := fmt.Sprintf("/documents/%s/elements/%s/z",
		url.PathEscape(docID.String()), url.PathEscape(a.String()))
	return r.do(ctx, http.MethodPut, path, map[string]string{"with": b.String()}, nil)
}

var _ Remote = (*HTTPRemote)(nil)
