package engine

import (
	"sync"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// pendingCreate tracks an element creation that has been applied locally
// and dispatched but whose durable identifier has not arrived yet. The
// sent state is the exact element serialized into the request; drift is
// whatever differs between it and the local state at acknowledgement time.
type pendingCreate struct {
	seq     int64
	docID   doc.Identifier
	section doc.SectionKey
	sent    doc.Element
	// deleted is set when the element was removed locally before the
	// acknowledgement. The completion then issues a remote delete instead
	// of a drift sync.
	deleted bool
}

// pendingSet indexes in-flight creations by ephemeral token. The editing
// goroutine adds and marks entries while the Run loop takes them, so every
// access holds the mutex.
type pendingSet struct {
	mu      sync.Mutex
	byToken map[string]*pendingCreate
}

func newPendingSet() *pendingSet {
	return &pendingSet{byToken: map[string]*pendingCreate{}}
}

func (p *pendingSet) add(eph doc.Identifier, pc *pendingCreate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byToken[eph.Token] = pc
}

// take removes and returns the entry for eph. Once taken, the entry is
// owned exclusively by the caller; markDeleted can no longer reach it.
func (p *pendingSet) take(eph doc.Identifier) (*pendingCreate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.byToken[eph.Token]
	if ok {
		delete(p.byToken, eph.Token)
	}
	return pc, ok
}

// markDeleted flags an in-flight creation whose element was deleted
// locally. Reports whether such a creation was still pending.
func (p *pendingSet) markDeleted(eph doc.Identifier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.byToken[eph.Token]
	if !ok {
		return false
	}
	pc.deleted = true
	return true
}

// forDocument returns the ephemeral ids of the document's live pending
// creations. Used by refresh to protect unacknowledged elements from
// being dropped by a merge whose fetch predates the acknowledgement.
func (p *pendingSet) forDocument(id doc.Identifier) []doc.Identifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []doc.Identifier
	for token, pc := range p.byToken {
		if pc.docID == id && !pc.deleted {
			out = append(out, doc.Identifier{Kind: doc.KindEphemeral, Token: token})
		}
	}
	return out
}

func (p *pendingSet) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byToken)
}
