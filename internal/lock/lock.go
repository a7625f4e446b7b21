// ABOUTME: Advisory locks guarding operator claim/release of a conversation
// ABOUTME: Locks are short-lived and stolen after a staleness window

package lock

import (
	"context"
	"time"
)

// DefaultStaleAfter is how long a held lock survives before a new Acquire
// may steal it. Claim and release complete in well under a second, so a
// lock this old belongs to a crashed caller.
const DefaultStaleAfter = 30 * time.Second

// Locker is a non-blocking advisory lock keyed by conversation ID.
type Locker interface {
	// Acquire tries to take the lock, returning false when someone else
	// holds a fresh one. It never blocks waiting for the holder.
	Acquire(ctx context.Context, key string) (bool, error)

	// Release drops the lock. Releasing an unheld lock is a no-op.
	Release(ctx context.Context, key string) error
}
