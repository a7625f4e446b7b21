// ABOUTME: Tests for FIFO queue semantics on the in-memory backend
// ABOUTME: Covers idempotent enqueue, ordering, positions and wait estimates

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueIsIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := t.Context()

	require.NoError(t, q.Enqueue(ctx, "user1"))
	require.NoError(t, q.Enqueue(ctx, "user1"))
	require.NoError(t, q.Enqueue(ctx, "user1"))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFIFOOrderPreserved(t *testing.T) {
	q := NewMemoryQueue()
	ctx := t.Context()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))
	require.NoError(t, q.Enqueue(ctx, "c"))

	// Removing from the middle keeps relative order of the rest.
	require.NoError(t, q.Dequeue(ctx, "b"))

	snap, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, snap)

	pos, err := q.Position(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestDequeueAbsentIsNoop(t *testing.T) {
	q := NewMemoryQueue()
	ctx := t.Context()

	require.NoError(t, q.Dequeue(ctx, "ghost"))

	pos, err := q.Position(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestConcurrentEnqueueSingleEntry(t *testing.T) {
	q := NewMemoryQueue()
	ctx := t.Context()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(ctx, "user1")
		}()
	}
	wg.Wait()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimatedWait(t *testing.T) {
	q := NewMemoryQueue()
	ctx := t.Context()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))

	wait, queued, err := EstimatedWait(ctx, q, "b", 3*time.Minute)
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, 6*time.Minute, wait)

	_, queued, err = EstimatedWait(ctx, q, "missing", 3*time.Minute)
	require.NoError(t, err)
	assert.False(t, queued)
}
