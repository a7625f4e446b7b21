// ABOUTME: Tests for operator claim/release including the conflict sequence
// ABOUTME: Covers idempotent re-claim, rival rejection and wrong-attendant release

package operator

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/lock"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
)

const conv = "5511988887777@c.us"

func testService(t *testing.T) (*Service, *session.Manager, queue.Queue, *events.Broadcaster) {
	t.Helper()
	backing := store.NewMemoryStore()
	sessions := session.NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	t.Cleanup(b.Close)
	svc := NewService(sessions, backing, lock.NewMemoryLocker(0), q, b, slog.Default())
	return svc, sessions, q, b
}

func queuedConversation(t *testing.T, sessions *session.Manager, q queue.Queue) {
	t.Helper()
	require.NoError(t, sessions.Update(t.Context(), conv, func(st *store.ConversationState) error {
		st.Step = string(flow.StepTransferToHuman)
		st.Data.Name = "Ana Souza"
		return nil
	}))
	require.NoError(t, q.Enqueue(t.Context(), conv))
}

func TestClaimTakesOverAndDequeues(t *testing.T) {
	svc, sessions, q, b := testService(t)
	queuedConversation(t, sessions, q)
	sub, _ := b.Subscribe(t.Context())

	require.NoError(t, svc.Claim(t.Context(), conv, "carlos"))

	st, err := sessions.Peek(t.Context(), conv)
	require.NoError(t, err)
	assert.Equal(t, store.ModeHuman, st.Mode)
	assert.Equal(t, "carlos", st.Attendant)
	assert.Equal(t, string(flow.StepInHumanChat), st.Step)

	n, err := q.Len(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)

	select {
	case ev := <-sub:
		assert.Equal(t, events.QueueLeave, ev.Name)
		assert.Equal(t, events.ReasonClaimed, ev.Payload["reason"])
	case <-time.After(time.Second):
		t.Fatal("expected a queue:leave event")
	}
}

func TestClaimConflictSequence(t *testing.T) {
	svc, sessions, q, _ := testService(t)
	queuedConversation(t, sessions, q)

	require.NoError(t, svc.Claim(t.Context(), conv, "carlos"))

	// Same attendant again: idempotent success, no second audit entry.
	require.NoError(t, svc.Claim(t.Context(), conv, "carlos"))

	// A rival is rejected without disturbing the owner.
	err := svc.Claim(t.Context(), conv, "daniela")
	require.ErrorIs(t, err, ErrClaimedByOther)

	st, err := sessions.Peek(t.Context(), conv)
	require.NoError(t, err)
	assert.Equal(t, "carlos", st.Attendant)

	entries, err := auditOf(t, svc)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.AuditClaim, entries[0].Action)
	assert.Equal(t, "carlos", entries[0].Attendant)
}

func TestReleaseRequiresOwner(t *testing.T) {
	svc, sessions, q, _ := testService(t)
	queuedConversation(t, sessions, q)
	require.NoError(t, svc.Claim(t.Context(), conv, "carlos"))

	err := svc.Release(t.Context(), conv, "daniela")
	require.ErrorIs(t, err, ErrNotAttendant)

	require.NoError(t, svc.Release(t.Context(), conv, "carlos"))

	st, err := sessions.Peek(t.Context(), conv)
	require.NoError(t, err)
	assert.Equal(t, store.ModeBot, st.Mode)
	assert.Empty(t, st.Attendant)
	assert.Equal(t, string(flow.StepSatisfactionRating), st.Step)

	entries, err := auditOf(t, svc)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.AuditRelease, entries[0].Action, "newest first")
}

func TestReleaseBlockedWhileLockHeld(t *testing.T) {
	backing := store.NewMemoryStore()
	sessions := session.NewManager(backing, "")
	q := queue.NewMemoryQueue()
	b := events.NewBroadcaster(slog.Default())
	t.Cleanup(b.Close)
	locker := lock.NewMemoryLocker(0)
	svc := NewService(sessions, backing, locker, q, b, slog.Default())
	queuedConversation(t, sessions, q)
	require.NoError(t, svc.Claim(t.Context(), conv, "carlos"))

	// Someone else holds the advisory lock; the handback must wait its turn.
	ok, err := locker.Acquire(t.Context(), conv)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, svc.Release(t.Context(), conv, "carlos"), ErrLockBusy)

	st, err := sessions.Peek(t.Context(), conv)
	require.NoError(t, err)
	assert.Equal(t, store.ModeHuman, st.Mode, "blocked release must not touch the session")

	require.NoError(t, locker.Release(t.Context(), conv))
	require.NoError(t, svc.Release(t.Context(), conv, "carlos"))
}

func TestReleaseUnclaimedConversation(t *testing.T) {
	svc, sessions, q, _ := testService(t)
	queuedConversation(t, sessions, q)

	err := svc.Release(t.Context(), conv, "carlos")
	require.ErrorIs(t, err, ErrNotClaimed)
}

func auditOf(t *testing.T, svc *Service) ([]*store.AuditEntry, error) {
	t.Helper()
	return svc.store.ListAudit(t.Context(), 10)
}
