// ABOUTME: FIFO waiting queue for conversations handed off to human operators
// ABOUTME: Defines the Queue interface plus position and wait-estimate semantics

package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of user IDs waiting for a human operator. Each user appears
// at most once; enqueueing an already-queued user is a no-op.
type Queue interface {
	// Enqueue appends the user unless already present.
	Enqueue(ctx context.Context, userID string) error

	// Dequeue removes the user wherever they are in the queue. Removing an
	// absent user is a no-op.
	Dequeue(ctx context.Context, userID string) error

	// Position returns the 1-based position of the user, or 0 when absent.
	Position(ctx context.Context, userID string) (int, error)

	// Snapshot returns the queue contents in FIFO order.
	Snapshot(ctx context.Context) ([]string, error)

	// Len returns the number of waiting users.
	Len(ctx context.Context) (int, error)
}

// EstimatedWait computes the expected wait for a queued user as
// position * avgHandle. The second return is false when the user is not
// queued.
func EstimatedWait(ctx context.Context, q Queue, userID string, avgHandle time.Duration) (time.Duration, bool, error) {
	pos, err := q.Position(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if pos == 0 {
		return 0, false, nil
	}
	return time.Duration(pos) * avgHandle, true, nil
}
