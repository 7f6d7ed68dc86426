package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

func TestQueueFIFO(t *testing.T) {
	q := newCompletionQueue()

	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(completion{Kind: completionWrite, Seq: i}))
	}
	assert.Equal(t, 3, q.Len())

	for i := int64(1); i <= 3; i++ {
		c, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, c.Seq)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueueSignalCoalesces(t *testing.T) {
	q := newCompletionQueue()

	q.Enqueue(completion{Seq: 1})
	q.Enqueue(completion{Seq: 2})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal after enqueue")
	}

	// Both items remain dequeueable even though the signals coalesced.
	_, ok := q.TryDequeue()
	require.True(t, ok)
	_, ok = q.TryDequeue()
	require.True(t, ok)
}

func TestQueueClosedRejectsEnqueue(t *testing.T) {
	q := newCompletionQueue()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(completion{Seq: 1}))

	// Close wakes waiters.
	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed queue should not block waiters")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := newCompletionQueue()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(completion{Kind: completionWrite, DocID: doc.DurableID("d")})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
