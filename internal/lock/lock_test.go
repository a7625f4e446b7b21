// ABOUTME: Tests for the in-process advisory lock
// ABOUTME: Covers mutual exclusion, release, staleness stealing and races

package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireExcludesSecondCaller(t *testing.T) {
	l := NewMemoryLocker(0)
	ctx := t.Context()

	ok, err := l.Acquire(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Another key is independent.
	ok, err = l.Acquire(ctx, "user2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	l := NewMemoryLocker(0)
	ctx := t.Context()

	ok, err := l.Acquire(ctx, "user1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "user1"))

	ok, err = l.Acquire(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleLockIsStolen(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := t.Context()

	ok, err := l.Acquire(ctx, "user1")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = l.Acquire(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, ok, "a lock past its staleness window should be stolen")
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	l := NewMemoryLocker(0)
	ctx := t.Context()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "user1")
			require.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
