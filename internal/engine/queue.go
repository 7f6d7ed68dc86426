package engine

import (
	"sync"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// completionKind distinguishes completion event kinds.
type completionKind int

const (
	// completionCreateElement carries the server response to an element
	// creation: the durable id (or error) plus the state that was sent.
	completionCreateElement completionKind = iota + 1
	// completionWrite carries the result of an update/delete call.
	completionWrite
)

// completion is the result of a network call, delivered to the Run loop.
type completion struct {
	Kind completionKind
	Seq  int64

	DocID doc.Identifier

	// Create-element fields
	EphemeralID doc.Identifier
	DurableID   doc.Identifier
	SentState   doc.Element

	// Write fields
	Op       string
	EntityID doc.Identifier

	Err error
}

// completionQueue is a thread-safe FIFO queue for network completions.
//
// Unbounded: a burst of resolving calls must never block the network
// goroutines delivering them. Thread-safety exists for the producers; the
// engine's Run loop is the only consumer.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type completionQueue struct {
	mu     sync.Mutex
	items  []completion
	closed bool
	signal chan struct{} // buffered, size 1 - coalesces multiple signals
}

func newCompletionQueue() *completionQueue {
	return &completionQueue{
		items:  make([]completion, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a completion to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *completionQueue) Enqueue(c completion) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (completion{}, false) if the queue is empty.
func (q *completionQueue) TryDequeue() (completion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return completion{}, false
	}

	c := q.items[0]

	// Nil out the slot so the backing array doesn't retain the
	// completion's pointers until reallocation.
	q.items[0] = completion{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return c, true
}

// Wait returns a channel that signals when completions may be available.
// Use with select for context-aware waiting.
func (q *completionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *completionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether the queue no longer accepts completions.
func (q *completionQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more completions will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *completionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
