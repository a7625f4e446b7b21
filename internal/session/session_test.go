// ABOUTME: Tests covering session serialization and the idle-session reaper
// ABOUTME: Uses a delayed store to prove same-user updates never interleave

package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/store"
)

// delayedStore injects latency into saves so interleaved read-modify-write
// cycles would lose increments without the per-user lock.
type delayedStore struct {
	store.Store
	delay time.Duration
}

func (d *delayedStore) SaveState(ctx context.Context, userID string, st *store.ConversationState) error {
	time.Sleep(d.delay)
	return d.Store.SaveState(ctx, userID, st)
}

func TestUpdateSerializesPerUser(t *testing.T) {
	backing := store.NewMemoryStore()
	m := NewManager(&delayedStore{Store: backing, delay: 2 * time.Millisecond}, "")

	const workers = 10
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Update(t.Context(), "user-1", func(st *store.ConversationState) error {
				if st.Data.Metrics == nil {
					st.Data.Metrics = &store.Metrics{}
				}
				st.Data.Metrics.MessagesFromUser++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := m.Peek(t.Context(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, st.Data.Metrics)
	assert.Equal(t, workers, st.Data.Metrics.MessagesFromUser, "every increment must survive")
}

func TestUpdateErrorSkipsSave(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), "")

	require.NoError(t, m.Update(t.Context(), "user-1", func(st *store.ConversationState) error {
		st.Data.Name = "Ana Souza"
		return nil
	}))
	err := m.Update(t.Context(), "user-1", func(st *store.ConversationState) error {
		st.Data.Name = "should not persist"
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	st, err := m.Peek(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", st.Data.Name)
}

func TestReaperExpiresIdleSessions(t *testing.T) {
	backing := store.NewMemoryStore()
	m := NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	defer b.Close()

	sub, _ := b.Subscribe(t.Context())

	// Idle user, mid-flow and queued.
	idle := store.Fresh(string(flow.StepTransferToHuman))
	idle.Data.Name = "Ana Souza"
	require.NoError(t, backing.SaveState(t.Context(), "idle@c.us", idle))
	require.NoError(t, q.Enqueue(t.Context(), "idle@c.us"))

	// Let the idle user cross the (tiny) timeout, then refresh only the
	// active user.
	time.Sleep(60 * time.Millisecond)
	active := store.Fresh(string(flow.StepMainMenu))
	active.Data.Name = "Bia Prado"
	require.NoError(t, backing.SaveState(t.Context(), "active@c.us", active))

	r := NewReaper(m, q, b, nil, time.Minute, 50*time.Millisecond, slog.Default())
	r.Sweep(t.Context())

	st, err := m.Peek(t.Context(), "idle@c.us")
	require.NoError(t, err)
	assert.Equal(t, string(flow.StepStart), st.Step)
	assert.Empty(t, st.Data.Name)

	st, err = m.Peek(t.Context(), "active@c.us")
	require.NoError(t, err)
	assert.Equal(t, "Bia Prado", st.Data.Name)

	n, err := q.Len(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n, "expired user must leave the queue")

	select {
	case ev := <-sub:
		assert.Equal(t, events.QueueLeave, ev.Name)
		assert.Equal(t, events.ReasonTimeout, ev.Payload["reason"])
	case <-time.After(time.Second):
		t.Fatal("expected a queue:leave event")
	}
}

func TestReaperIgnoresUntouchedStarters(t *testing.T) {
	backing := store.NewMemoryStore()
	m := NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	defer b.Close()
	sub, _ := b.Subscribe(t.Context())

	fresh := store.Fresh(string(flow.StepStart))
	require.NoError(t, backing.SaveState(t.Context(), "ghost@c.us", fresh))
	time.Sleep(30 * time.Millisecond)

	r := NewReaper(m, q, b, nil, time.Minute, 10*time.Millisecond, slog.Default())
	r.Sweep(t.Context())

	select {
	case ev := <-sub:
		t.Fatalf("unexpected event %q for a never-progressed session", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}
