// ABOUTME: In-memory FIFO queue implementation
// ABOUTME: All operations are serialized under one mutex to keep FIFO order exact

package queue

import (
	"context"
	"slices"
	"sync"
)

// MemoryQueue is the process-local Queue. A single mutex serializes every
// operation so concurrent enqueues of the same user collapse to one entry.
type MemoryQueue struct {
	mu      sync.Mutex
	waiting []string
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slices.Contains(q.waiting, userID) {
		return nil
	}
	q.waiting = append(q.waiting, userID)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := slices.Index(q.waiting, userID); i >= 0 {
		q.waiting = slices.Delete(q.waiting, i, i+1)
	}
	return nil
}

func (q *MemoryQueue) Position(_ context.Context, userID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := slices.Index(q.waiting, userID); i >= 0 {
		return i + 1, nil
	}
	return 0, nil
}

func (q *MemoryQueue) Snapshot(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.waiting), nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting), nil
}
