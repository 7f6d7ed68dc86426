package gateway

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func (s *Server) handleCreateElement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	key := doc.SectionKey(mux.Vars(r)["key"])
	if err := s.validator.ValidateSectionKey(key); err != nil {
		writeStoreError(w, err)
		return
	}
	var el doc.Element
	if err := decodeJSON(r, &el); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.validator.ValidateElement(el.Kind, el.Payload); err != nil {
		writeStoreError(w, err)
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	durable, err := s.store.CreateElement(r.Context(), id, key, el)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := s.store.GetElement(r.Context(), durable)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "element", DocumentID: id.String(), Element: durable.String()})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	elemID, ok := pathID(w, r, "elementID")
	if !ok {
		return
	}
	var patch doc.ElementPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if patch.Payload != nil {
		el, err := s.store.GetElement(r.Context(), elemID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if err := s.validator.ValidateElement(el.Kind, *patch.Payload); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.UpdateElement(r.Context(), elemID, patch); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "element", DocumentID: id.String(), Element: elemID.String()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	elemID, ok := pathID(w, r, "elementID")
	if !ok {
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteElement(r.Context(), elemID); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "element", DocumentID: id.String(), Element: elemID.String()})
	w.WriteHeader(http.StatusNoContent)
}

type swapRequest struct {
	With string `json:"with"`
}

func (s *Server) handleSwapElementZ(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	elemID, ok := pathID(w, r, "elementID")
	if !ok {
		return
	}
	var req swapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	other, err := doc.ParseIdentifier(req.With)
	if err != nil || other.IsEphemeral() {
		writeError(w, http.StatusBadRequest, "invalid swap target")
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.SwapElementZ(r.Context(), elemID, other); err != nil {
		writeStoreError(w, err)
		return
	}

	s.invalidateDocument(r.Context(), before, false)
	s.hub.broadcast(id.Token, changeEvent{Type: "element", DocumentID: id.String(), Element: elemID.String()})
	w.WriteHeader(http.StatusNoContent)
}
