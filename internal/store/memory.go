// ABOUTME: In-memory Store implementation used by tests and single-node setups
// ABOUTME: States are deep-copied on load/save so callers never alias the map

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. It is safe for concurrent
// use and is the default when no database path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*ConversationState
	audit  []*AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*ConversationState),
	}
}

func (m *MemoryStore) LoadState(_ context.Context, userID, startStep string) (*ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[userID]
	if !ok {
		return Fresh(startStep), nil
	}
	return cloneState(st)
}

func (m *MemoryStore) SaveState(_ context.Context, userID string, state *ConversationState) error {
	cp, err := cloneState(state)
	if err != nil {
		return err
	}
	cp.LastInteraction = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = cp
	return nil
}

func (m *MemoryStore) TouchState(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[userID]; ok {
		st.LastInteraction = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) ListStates(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) ResetState(_ context.Context, userID, startStep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = Fresh(startStep)
	return nil
}

func (m *MemoryStore) DeleteState(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[userID]; !ok {
		return ErrNotFound
	}
	delete(m.states, userID)
	return nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *MemoryStore) ListAudit(_ context.Context, limit int) ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*AuditEntry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// cloneState round-trips through JSON so nested pointers are never shared
// between the store and its callers.
func cloneState(st *ConversationState) (*ConversationState, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("cloning state: %w", err)
	}
	var cp ConversationState
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("cloning state: %w", err)
	}
	return &cp, nil
}
