// ABOUTME: In-process advisory lock implementation
// ABOUTME: Tracks acquisition times so stale locks from dead callers get stolen

package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with a map of acquisition times.
type MemoryLocker struct {
	mu         sync.Mutex
	held       map[string]time.Time
	staleAfter time.Duration
}

// NewMemoryLocker creates a locker. A zero staleAfter uses DefaultStaleAfter.
func NewMemoryLocker(staleAfter time.Duration) *MemoryLocker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &MemoryLocker{
		held:       make(map[string]time.Time),
		staleAfter: staleAfter,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.held[key]; ok && time.Since(at) < l.staleAfter {
		return false, nil
	}
	l.held[key] = time.Now()
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
