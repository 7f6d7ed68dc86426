package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aivexl/tamuu-sub000/internal/cache"
	"github.com/aivexl/tamuu-sub000/internal/doc"
)

type createDocumentRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.store.CreateDocument(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// List membership changed; individual document keys are untouched.
	s.cache.Invalidate(r.Context(), cache.ListKey)

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	value, state, err := s.cache.Get(r.Context(), cache.ListKey, func(ctx context.Context) ([]byte, time.Duration, time.Duration, error) {
		list, err := s.store.ListDocuments(ctx)
		if err != nil {
			return nil, 0, 0, err
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return nil, 0, 0, err
		}
		fresh, hard := s.policy.ForList()
		return raw, fresh, hard, nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeCached(w, state, value)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	key := cache.DocumentKey(id.Token)

	// Bypass flag: drop the cached entry so the read goes to the store
	// and reprimes the cache.
	if r.URL.Query().Get("fresh") == "1" {
		s.cache.Invalidate(r.Context(), key)
	}

	value, state, err := s.cache.Get(r.Context(), key, s.documentLoader(id))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeCached(w, state, value)
}

// documentLoader reads the full document and picks the TTL window from its
// lifecycle state.
func (s *Server) documentLoader(id doc.Identifier) cache.Loader {
	return func(ctx context.Context) ([]byte, time.Duration, time.Duration, error) {
		d, err := s.store.GetDocument(ctx, id)
		if err != nil {
			return nil, 0, 0, err
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, 0, 0, err
		}
		fresh, hard := s.policy.ForStatus(d.Status)
		return raw, fresh, hard, nil
	}
}

func (s *Server) handleGetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	value, state, err := s.cache.Get(r.Context(), cache.PublicKey(slug), func(ctx context.Context) ([]byte, time.Duration, time.Duration, error) {
		d, err := s.store.GetPublishedBySlug(ctx, slug)
		if err != nil {
			return nil, 0, 0, err
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, 0, 0, err
		}
		fresh, hard := s.policy.ForStatus(doc.StatusPublished)
		return raw, fresh, hard, nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeCached(w, state, value)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch doc.DocumentPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if patch.Status != nil {
		if err := s.validator.ValidateStatus(*patch.Status); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.UpdateDocument(r.Context(), id, patch); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, patch.Status != nil || patch.Slug != nil)
	s.hub.broadcast(id.Token, changeEvent{Type: "document", DocumentID: id.String()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	keys := []string{cache.DocumentKey(id.Token), cache.ListKey}
	if before.Slug != "" {
		keys = append(keys, cache.PublicKey(before.Slug))
	}
	s.cache.Invalidate(r.Context(), keys...)
	s.hub.broadcast(id.Token, changeEvent{Type: "deleted", DocumentID: id.String()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, doc.StatusPublished)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, doc.StatusDraft)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, status doc.Status) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	patch := doc.DocumentPatch{Status: &status}
	if err := s.store.UpdateDocument(r.Context(), id, patch); err != nil {
		writeStoreError(w, err)
		return
	}

	// A lifecycle transition always changes what the published projection
	// serves.
	s.invalidateDocument(r.Context(), before, true)
	s.hub.broadcast(id.Token, changeEvent{Type: "document", DocumentID: id.String()})

	after, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, after)
}

// invalidateDocument drops the document's cache key, plus the published
// projection when the write changed published-visible state. The list key
// is deliberately left alone; it is invalidated only on create/delete.
func (s *Server) invalidateDocument(ctx context.Context, before *doc.Document, forceProjection bool) {
	keys := []string{cache.DocumentKey(before.ID.Token)}
	if before.Slug != "" && (forceProjection || before.Status == doc.StatusPublished) {
		keys = append(keys, cache.PublicKey(before.Slug))
	}
	s.cache.Invalidate(ctx, keys...)
}

// writeCached sends a cached payload with its serving state in X-Cache.
func writeCached(w http.ResponseWriter, state cache.State, value []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(state))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

// pathID parses the {id} or {elementID} path variable.
func pathID(w http.ResponseWriter, r *http.Request, name string) (doc.Identifier, bool) {
	id, err := doc.ParseIdentifier(mux.Vars(r)[name])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid identifier: "+err.Error())
		return doc.Identifier{}, false
	}
	if id.IsEphemeral() {
		writeError(w, http.StatusBadRequest, "ephemeral identifiers are not addressable")
		return doc.Identifier{}, false
	}
	return id, true
}
