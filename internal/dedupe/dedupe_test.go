// ABOUTME: Tests for the message-ID dedupe cache
// ABOUTME: Covers duplicate detection, TTL expiry and capacity eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenDetectsDuplicates(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("msg1"))
	assert.True(t, c.Seen("msg1"))
	assert.False(t, c.Seen("msg2"))
}

func TestSeenForgetsAfterTTL(t *testing.T) {
	c := New(20*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.Seen("msg1"))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, c.Seen("msg1"), "expired IDs should be processed again")
	assert.True(t, c.Seen("msg1"))
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := range 4 {
		c.Seen(fmt.Sprintf("msg%d", i))
	}

	// msg0 was evicted to make room for msg3.
	assert.False(t, c.Seen("msg0"))
	assert.True(t, c.Seen("msg3"))
}
