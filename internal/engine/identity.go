package engine

import (
	"log/slog"
	"sync"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// Resolver maintains the mapping from ephemeral identifiers to durable
// ones. Every mutation consults Resolve before talking to the network, so
// in-flight operations addressed to an ephemeral id are redirected
// transparently once the identity is known.
//
// Mappings are never removed within a session; Forget reclaims a closed
// document's entries.
//
// Thread-safety: safe for concurrent use. Bind is called only from the
// Run loop, Resolve from the editing goroutine.
type Resolver struct {
	mu     sync.RWMutex
	byEph  map[string]doc.Identifier // ephemeral token -> durable id
	byDoc  map[string][]string       // doc token -> ephemeral tokens, for Forget
	logger *slog.Logger
}

// NewResolver creates an empty identity resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		byEph:  map[string]doc.Identifier{},
		byDoc:  map[string][]string{},
		logger: logger,
	}
}

// Resolve returns the current identifier for id: the durable id if a
// mapping exists, otherwise id itself. Durable ids resolve to themselves.
func (r *Resolver) Resolve(id doc.Identifier) doc.Identifier {
	if !id.IsEphemeral() {
		return id
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if durable, ok := r.byEph[id.Token]; ok {
		return durable
	}
	return id
}

// Bind records that eph now resolves to durable. Idempotent: a duplicate
// bind for an already-mapped ephemeral id (a retried create, say) is an
// identity conflict - logged, never applied over the existing mapping.
// Returns false when the bind was rejected.
func (r *Resolver) Bind(docID, eph, durable doc.Identifier) bool {
	if !eph.IsEphemeral() {
		r.logger.Error("bind called with non-ephemeral source id", "id", eph.String())
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEph[eph.Token]; ok {
		err := &SyncError{
			Code:     ErrCodeIdentityConflict,
			Message:  "duplicate create response for already-mapped ephemeral id",
			DocID:    docID.Token,
			EntityID: eph.String(),
		}
		r.logger.Error("identity conflict",
			"error", err,
			"existing", existing.Token,
			"rejected", durable.Token,
		)
		return false
	}
	r.byEph[eph.Token] = durable
	r.byDoc[docID.Token] = append(r.byDoc[docID.Token], eph.Token)
	return true
}

// Forget garbage-collects the mappings of a closed document.
func (r *Resolver) Forget(docID doc.Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.byDoc[docID.Token] {
		delete(r.byEph, token)
	}
	delete(r.byDoc, docID.Token)
}

// Len returns the number of live mappings. Used by tests.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEph)
}
