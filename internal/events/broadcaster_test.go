// ABOUTME: Tests for the dashboard event broadcaster
// ABOUTME: Verifies fan-out, non-blocking publish and context-based cleanup

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Publish(NewQueueJoin("5511999990000", "Maria", 1))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, QueueJoin, ev.Name)
			assert.Equal(t, "5511999990000", ev.Payload["chatId"])
			assert.Equal(t, 1, ev.Payload["position"])
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize+10; i++ {
			b.Publish(NewQueueLeave("user1", ReasonTimeout))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	// The buffer should be full but no more.
	assert.Len(t, ch, subscriberBufferSize)
}

func TestContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(t.Context())
	ch, _ := b.Subscribe(ctx)
	cancel()

	// The channel closes once cleanup runs.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestCloseClosesAllChannels(t *testing.T) {
	b := NewBroadcaster(nil)

	ch, _ := b.Subscribe(t.Context())
	b.Close()

	_, open := <-ch
	assert.False(t, open)
}
