// Package cache implements the two-tier read path: a fast key-value tier
// in front of the durable store, with TTL policy conditioned on document
// lifecycle state and stale-while-revalidate background refresh.
//
// Invalidation is explicit and narrowly scoped. A write to a document
// invalidates only that document's key; list keys are invalidated only on
// creation and deletion to bound invalidation cost under heavy editing.
//
// The fast tier must fail open: an unreachable tier is a cache miss, never
// a hard error.
package cache

import (
	"context"
	"sync"
	"time"
)

// State classifies a cache lookup for observability. Values match the
// X-Cache response header emitted by the gateway.
type State string

const (
	StateHit   State = "HIT"
	StateStale State = "STALE"
	StateMiss  State = "MISS"
)

// Entry is one cached value with its freshness window.
//
// With age = now - CachedAt: the entry is fresh while age < FreshTTL,
// stale-but-usable while FreshTTL <= age < HardTTL, and absent afterward.
type Entry struct {
	Key      string
	Value    []byte
	CachedAt time.Time
	FreshTTL time.Duration
	HardTTL  time.Duration
}

// stateAt classifies the entry at the given instant.
func (e Entry) stateAt(now time.Time) State {
	age := now.Sub(e.CachedAt)
	switch {
	case age < e.FreshTTL:
		return StateHit
	case age < e.HardTTL:
		return StateStale
	default:
		return StateMiss
	}
}

// KV is the fast tier. Implementations may be remote; errors from any
// method are treated as misses by the tiered reader, never surfaced.
type KV interface {
	// Get returns the entry for key, or nil if absent.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set stores the entry, replacing any previous value.
	Set(ctx context.Context, entry Entry) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Memory is an in-process KV tier.
//
// Expired entries are dropped lazily on read; there is no sweeper because
// the working set is bounded by the number of open documents.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an empty in-process tier.
func NewMemory() *Memory {
	return &Memory{entries: map[string]Entry{}, now: time.Now}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if entry.stateAt(m.now()) == StateMiss {
		m.mu.Lock()
		// re-check under the write lock; a Set may have raced
		if cur, ok := m.entries[key]; ok && cur.stateAt(m.now()) == StateMiss {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return &entry, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, entry Entry) error {
	m.mu.Lock()
	m.entries[entry.Key] = entry
	m.mu.Unlock()
	return nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries. Used by tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
