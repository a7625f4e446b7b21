// ABOUTME: TTL cache that drops webhook redeliveries of the same WhatsApp message
// ABOUTME: Size-bounded with O(1) eviction via an insertion-order list

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers recently processed message IDs. The provider retries
// webhook delivery on slow responses, so the same message can arrive more
// than once; Seen collapses those retries to a single processing run.
type Cache struct {
	mu     sync.Mutex
	ids    map[string]*entry
	order  *list.List // oldest at front
	ttl    time.Duration
	cap    int
	done   chan struct{}
	closed bool
}

// New creates a cache that forgets IDs after ttl and never holds more than
// cap entries. A janitor goroutine sweeps expired entries once a minute.
func New(ttl time.Duration, cap int) *Cache {
	c := &Cache{
		ids:   make(map[string]*entry),
		order: list.New(),
		ttl:   ttl,
		cap:   cap,
		done:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Seen atomically checks whether id was already processed and records it if
// not. True means duplicate: the caller should drop the message.
func (c *Cache) Seen(id string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.ids[id]; ok && now.Sub(e.at) < c.ttl {
		return true
	}

	if e, ok := c.ids[id]; ok {
		// Expired entry for the same ID: refresh in place.
		e.at = now
		c.order.MoveToBack(e.elem)
		return false
	}

	if len(c.ids) >= c.cap {
		if front := c.order.Front(); front != nil {
			delete(c.ids, front.Value.(string))
			c.order.Remove(front)
		}
	}

	c.ids[id] = &entry{at: now, elem: c.order.PushBack(id)}
	return false
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; {
		id := front.Value.(string)
		e := c.ids[id]
		if now.Sub(e.at) <= c.ttl {
			break // list is ordered oldest-first
		}
		next := front.Next()
		c.order.Remove(front)
		delete(c.ids, id)
		front = next
	}
}

// Close stops the janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
