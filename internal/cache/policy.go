package cache

import (
	"time"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// Policy maps what is being cached to its freshness window.
//
// Published documents change rarely after publication and get a long fresh
// window; drafts get a short one to keep the editor near-real-time; list
// views sit in between. The hard TTL is a fixed multiple of the fresh TTL,
// bounding how stale a served value can ever be.
type Policy struct {
	DraftFresh     time.Duration
	PublishedFresh time.Duration
	ListFresh      time.Duration

	// HardFactor scales fresh -> hard. Must be > 1.
	HardFactor int
}

// DefaultPolicy returns the production TTL windows.
func DefaultPolicy() Policy {
	return Policy{
		DraftFresh:     time.Minute,
		PublishedFresh: 24 * time.Hour,
		ListFresh:      5 * time.Minute,
		HardFactor:     4,
	}
}

// ForStatus returns (fresh, hard) for a document in the given state.
func (p Policy) ForStatus(status doc.Status) (time.Duration, time.Duration) {
	fresh := p.DraftFresh
	if status == doc.StatusPublished {
		fresh = p.PublishedFresh
	}
	return fresh, fresh * time.Duration(p.hardFactor())
}

// ForList returns (fresh, hard) for list-view entries.
func (p Policy) ForList() (time.Duration, time.Duration) {
	return p.ListFresh, p.ListFresh * time.Duration(p.hardFactor())
}

func (p Policy) hardFactor() int {
	if p.HardFactor <= 1 {
		return 2
	}
	return p.HardFactor
}

// Cache keys. One key per document, one for the published projection, one
// for the list view.

// DocumentKey is the cache key for a full document.
func DocumentKey(token string) string { return "doc:" + token }

// PublicKey is the cache key for the published projection of a slug.
func PublicKey(slug string) string { return "pub:" + slug }

// ListKey is the cache key for the document list view.
const ListKey = "documents:list"
