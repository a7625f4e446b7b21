// ABOUTME: Per-user session manager serializing load-mutate-save cycles
// ABOUTME: Concurrent messages from one user run strictly one at a time

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/store"
)

// ErrAbort stops an Update without saving and without reporting an error.
var ErrAbort = errors.New("session: update aborted")

// Manager owns the load-mutate-save cycle for conversation state. All state
// access goes through Update so two messages from the same user can never
// interleave their read-modify-write.
type Manager struct {
	store     store.Store
	startStep string

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewManager(s store.Store, startStep string) *Manager {
	if startStep == "" {
		startStep = string(flow.StepStart)
	}
	return &Manager{
		store:     s,
		startStep: startStep,
		users:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.users[userID] = lock
	}
	return lock
}

// Update loads the user's state, runs fn on it and saves the result. The
// whole cycle holds the user's lock. When fn returns an error the state is
// not saved; ErrAbort skips the save silently.
func (m *Manager) Update(ctx context.Context, userID string, fn func(st *store.ConversationState) error) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := m.store.LoadState(ctx, userID, m.startStep)
	if err != nil {
		return fmt.Errorf("loading state for %s: %w", userID, err)
	}
	if err := fn(st); err != nil {
		if errors.Is(err, ErrAbort) {
			return nil
		}
		return err
	}
	if err := m.store.SaveState(ctx, userID, st); err != nil {
		return fmt.Errorf("saving state for %s: %w", userID, err)
	}
	return nil
}

// Peek returns a loaded copy of the state without holding the user's lock
// beyond the read. Mutations to the returned value are not persisted.
func (m *Manager) Peek(ctx context.Context, userID string) (*store.ConversationState, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return m.store.LoadState(ctx, userID, m.startStep)
}

// Reset discards the user's state under the session lock.
func (m *Manager) Reset(ctx context.Context, userID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return m.store.ResetState(ctx, userID, m.startStep)
}
