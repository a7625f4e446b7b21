// ABOUTME: Tests for the memory and SQLite store implementations
// ABOUTME: Covers fresh-state fallback, round-tripping typed data and the audit trail

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFreshState(t *testing.T) {
	s := NewMemoryStore()

	st, err := s.LoadState(t.Context(), "5511999990000", "start")
	require.NoError(t, err)
	assert.Equal(t, "start", st.Step)
	assert.Equal(t, ModeBot, st.Mode)
	assert.Empty(t, st.Data.Name)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()

	st := Fresh("start")
	st.Step = "purchase_quantity_robust"
	st.Data.Name = "Maria Silva"
	st.Data.FirstName = "Maria"
	st.Data.Purchase = &PurchaseData{ProductName: "furadeira", Quantity: 2}

	require.NoError(t, s.SaveState(ctx, "user1", st))

	// Mutating the original after save must not leak into the store.
	st.Data.Purchase.Quantity = 99

	got, err := s.LoadState(ctx, "user1", "start")
	require.NoError(t, err)
	assert.Equal(t, "purchase_quantity_robust", got.Step)
	require.NotNil(t, got.Data.Purchase)
	assert.Equal(t, 2, got.Data.Purchase.Quantity)
	assert.Equal(t, "Maria Silva", got.Data.Name)
	assert.False(t, got.LastInteraction.IsZero())
}

func TestMemoryStoreResetAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()

	st := Fresh("start")
	st.Step = "faq_menu"
	require.NoError(t, s.SaveState(ctx, "user1", st))

	require.NoError(t, s.ResetState(ctx, "user1", "start"))
	got, err := s.LoadState(ctx, "user1", "start")
	require.NoError(t, err)
	assert.Equal(t, "start", got.Step)

	require.NoError(t, s.DeleteState(ctx, "user1"))
	assert.ErrorIs(t, s.DeleteState(ctx, "user1"), ErrNotFound)
}

func TestMemoryStoreAuditNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()

	first := NewAuditEntry(AuditClaim, "user1", "attendant1")
	second := NewAuditEntry(AuditRelease, "user1", "attendant1")
	require.NoError(t, s.AppendAudit(ctx, first))
	require.NoError(t, s.AppendAudit(ctx, second))

	entries, err := s.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, AuditRelease, entries[0].Action)
	assert.Equal(t, AuditClaim, entries[1].Action)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atende.db")
	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()

	st, err := s.LoadState(ctx, "user1", "start")
	require.NoError(t, err)
	assert.Equal(t, "start", st.Step)

	st.Step = "cart_menu"
	st.Mode = ModeHuman
	st.Attendant = "5511988880000"
	st.Data.Cart = &CartData{Items: []CartItem{{Name: "martelo", Quantity: 1, AddedAt: time.Now().UTC()}}}
	require.NoError(t, s.SaveState(ctx, "user1", st))

	got, err := s.LoadState(ctx, "user1", "start")
	require.NoError(t, err)
	assert.Equal(t, "cart_menu", got.Step)
	assert.Equal(t, ModeHuman, got.Mode)
	assert.Equal(t, "5511988880000", got.Attendant)
	require.NotNil(t, got.Data.Cart)
	require.Len(t, got.Data.Cart.Items, 1)
	assert.Equal(t, "martelo", got.Data.Cart.Items[0].Name)

	ids, err := s.ListStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user1"}, ids)
}

func TestSQLiteStoreCorruptDataStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atende.db")
	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()
	st := Fresh("start")
	st.Step = "faq_menu"
	st.Data.Name = "Maria Silva"
	require.NoError(t, s.SaveState(ctx, "user1", st))

	_, err = s.db.ExecContext(ctx, `UPDATE user_states SET data = '{broken' WHERE user_id = ?`, "user1")
	require.NoError(t, err)

	got, err := s.LoadState(ctx, "user1", "start")
	require.NoError(t, err)
	assert.Equal(t, "start", got.Step)
	assert.Empty(t, got.Data.Name)
}

func TestSQLiteStoreAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atende.db")
	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()
	require.NoError(t, s.AppendAudit(ctx, NewAuditEntry(AuditClaim, "user1", "op1")))
	require.NoError(t, s.AppendAudit(ctx, NewAuditEntry(AuditRelease, "user1", "op1")))

	entries, err := s.ListAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditRelease, entries[0].Action)
}
