package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Loader fetches the authoritative value from the durable store and
// reports the fresh TTL the result should be cached with.
type Loader func(ctx context.Context) (value []byte, fresh time.Duration, hard time.Duration, err error)

// Tiered is the two-tier read path.
//
// Lookup states per key:
//   - miss: load synchronously, cache, return
//   - fresh hit: return cached value
//   - stale hit: return cached value immediately AND schedule exactly one
//     background revalidation; the revalidation result overwrites the
//     entry but never retroactively changes a response already sent
//
// Fast-tier errors are logged and treated as misses (fail open).
type Tiered struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	revalidating map[string]bool

	// wg tracks background revalidations so Close can drain them.
	wg sync.WaitGroup
}

// Option configures a Tiered reader.
type Option func(*Tiered)

// WithClock overrides the time source. Used by tests to step through the
// freshness window deterministically.
func WithClock(now func() time.Time) Option {
	return func(t *Tiered) { t.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tiered) { t.logger = logger }
}

// NewTiered creates the read path over the given fast tier.
func NewTiered(kv KV, opts ...Option) *Tiered {
	t := &Tiered{
		kv:           kv,
		logger:       slog.Default(),
		now:          time.Now,
		revalidating: map[string]bool{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get serves key through the cache, calling load on miss and on background
// revalidation. The returned state reports how the value was served.
func (t *Tiered) Get(ctx context.Context, key string, load Loader) ([]byte, State, error) {
	entry, err := t.kv.Get(ctx, key)
	if err != nil {
		// Fail open: an unreachable fast tier is a miss, not an error
		t.logger.Warn("cache tier unreachable, falling through", "key", key, "error", err)
		entry = nil
	}

	if entry == nil {
		value, err := t.loadAndSet(ctx, key, load)
		if err != nil {
			return nil, StateMiss, err
		}
		return value, StateMiss, nil
	}

	switch entry.stateAt(t.now()) {
	case StateHit:
		return entry.Value, StateHit, nil
	case StateStale:
		t.scheduleRevalidation(key, load)
		return entry.Value, StateStale, nil
	default:
		value, err := t.loadAndSet(ctx, key, load)
		if err != nil {
			return nil, StateMiss, err
		}
		return value, StateMiss, nil
	}
}

// Invalidate drops the given keys from the fast tier. Errors are logged,
// not surfaced: a failed invalidation self-heals when the entry expires.
func (t *Tiered) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := t.kv.Delete(ctx, keys...); err != nil {
		t.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// Close waits for in-flight background revalidations to finish.
func (t *Tiered) Close() {
	t.wg.Wait()
}

func (t *Tiered) loadAndSet(ctx context.Context, key string, load Loader) ([]byte, error) {
	value, fresh, hard, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	t.store(ctx, key, value, fresh, hard)
	return value, nil
}

// scheduleRevalidation starts a background refresh for key unless one is
// already in flight. The refresh runs detached from the caller's context
// so an early client disconnect cannot cancel it.
func (t *Tiered) scheduleRevalidation(key string, load Loader) {
	t.mu.Lock()
	if t.revalidating[key] {
		t.mu.Unlock()
		return
	}
	t.revalidating[key] = true
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.revalidating, key)
			t.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		value, fresh, hard, err := load(ctx)
		if err != nil {
			t.logger.Warn("background revalidation failed", "key", key, "error", err)
			return
		}
		t.store(ctx, key, value, fresh, hard)
	}()
}

func (t *Tiered) store(ctx context.Context, key string, value []byte, fresh, hard time.Duration) {
	err := t.kv.Set(ctx, Entry{
		Key:      key,
		Value:    value,
		CachedAt: t.now(),
		FreshTTL: fresh,
		HardTTL:  hard,
	})
	if err != nil {
		// Fail open on the write side too; the next read just misses
		t.logger.Warn("cache store failed", "key", key, "error", err)
	}
}
