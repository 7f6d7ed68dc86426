package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping local mutations.
//
// Per-entity ordering relies on these seq numbers, not wall-clock time:
// mutation requests for a single entity are issued in the order they were
// applied locally, and the seq makes that order explicit in logs and
// completions even when responses arrive out of causal order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the engine's single-writer design means one goroutine typically
// calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
