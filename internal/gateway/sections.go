package gateway

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func (s *Server) handleUpsertSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	key := doc.SectionKey(mux.Vars(r)["key"])
	if err := s.validator.ValidateSectionKey(key); err != nil {
		writeStoreError(w, err)
		return
	}
	var patch doc.SectionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.UpsertSection(r.Context(), id, key, patch); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "section", DocumentID: id.String(), Section: string(key)})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	key := doc.SectionKey(mux.Vars(r)["key"])
	if err := s.validator.ValidateSectionKey(key); err != nil {
		writeStoreError(w, err)
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteSection(r.Context(), id, key); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "section", DocumentID: id.String(), Section: string(key)})
	w.WriteHeader(http.StatusNoContent)
}

type sectionOrderRequest struct {
	Order []doc.SectionKey `json:"order"`
}

func (s *Server) handleSetSectionOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req sectionOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	for _, key := range req.Order {
		if err := s.validator.ValidateSectionKey(key); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.SetSectionOrder(r.Context(), id, req.Order); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "order", DocumentID: id.String()})
	w.WriteHeader(http.StatusNoContent)
}
