package gateway

import (
	"fmt"
	"net/http"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// batchRequest is an ordered set of section and element updates bound to
// one document. Sections are applied before elements.
type batchRequest struct {
	DocumentID string         `json:"document_id"`
	Sections   []batchSection `json:"sections"`
	Elements   []batchElement `json:"elements"`
}

type batchSection struct {
	Key   doc.SectionKey   `json:"key"`
	Patch doc.SectionPatch `json:"patch"`
}

type batchElement struct {
	ID    string           `json:"id"`
	Patch doc.ElementPatch `json:"patch"`
}

type batchResponse struct {
	Success bool         `json:"success"`
	Updated batchUpdated `json:"updated"`
	Errors  []string     `json:"errors"`
}

type batchUpdated struct {
	Sections int `json:"sections"`
	Elements int `json:"elements"`
	Total    int `json:"total"`
}

// handleBatch applies each item independently: one item's failure is
// recorded and never aborts the remaining items. Exactly one cache
// invalidation is issued for the parent document when at least one item
// succeeded.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	total := len(req.Sections) + len(req.Elements)
	if total == 0 {
		writeError(w, http.StatusBadRequest, "no items")
		return
	}
	if total > s.batchMax {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d items exceeds the limit of %d", total, s.batchMax))
		return
	}
	id, err := doc.ParseIdentifier(req.DocumentID)
	if err != nil || id.IsEphemeral() {
		writeError(w, http.StatusBadRequest, "invalid document_id")
		return
	}

	before, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := batchResponse{Errors: []string{}}
	for i, item := range req.Sections {
		if err := s.applyBatchSection(r, id, item); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("sections[%d]: %v", i, err))
			continue
		}
		resp.Updated.Sections++
	}
	for i, item := range req.Elements {
		if err := s.applyBatchElement(r, item); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("elements[%d]: %v", i, err))
			continue
		}
		resp.Updated.Elements++
	}
	resp.Updated.Total = resp.Updated.Sections + resp.Updated.Elements
	resp.Success = len(resp.Errors) == 0

	if resp.Updated.Total > 0 {
		s.invalidateDocument(r.Context(), before, false)
		s.hub.broadcast(id.Token, changeEvent{Type: "document", DocumentID: id.String()})
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) applyBatchSection(r *http.Request, docID doc.Identifier, item batchSection) error {
	if err := s.validator.ValidateSectionKey(item.Key); err != nil {
		return err
	}
	return s.store.UpsertSection(r.Context(), docID, item.Key, item.Patch)
}

func (s *Server) applyBatchElement(r *http.Request, item batchElement) error {
	elemID, err := doc.ParseIdentifier(item.ID)
	if err != nil {
		return fmt.Errorf("invalid element id: %w", err)
	}
	if elemID.IsEphemeral() {
		return fmt.Errorf("ephemeral element id %q is not addressable", item.ID)
	}
	if item.Patch.Payload != nil {
		el, err := s.store.GetElement(r.Context(), elemID)
		if err != nil {
			return err
		}
		if err := s.validator.ValidateElement(el.Kind, *item.Patch.Payload); err != nil {
			return err
		}
	}
	return s.store.UpdateElement(r.Context(), elemID, item.Patch)
}
