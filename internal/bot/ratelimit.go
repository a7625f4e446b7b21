// ABOUTME: Per-user sliding-window rate limiter for inbound messages
// ABOUTME: Protects the engine from floods; limits are per WhatsApp number

package bot

import (
	"sync"
	"time"
)

const (
	defaultRateLimit  = 20
	defaultRateWindow = time.Minute
)

// rateLimiter counts messages per user over a sliding window.
type rateLimiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	warned map[string]time.Time
	limit  int
	window time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &rateLimiter{
		seen:   make(map[string][]time.Time),
		warned: make(map[string]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records one message for userID and reports whether it is within the
// limit.
func (r *rateLimiter) Allow(userID string) bool {
	now := time.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	times := r.seen[userID]
	kept := times[:0]
	for _, at := range times {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= r.limit {
		r.seen[userID] = kept
		return false
	}
	r.seen[userID] = append(kept, now)
	return true
}

// ShouldWarn reports whether the user has not been warned within the current
// window yet. The warning is sent at most once per window so a flood does not
// get a flood of warnings back.
func (r *rateLimiter) ShouldWarn(userID string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.warned[userID]; ok && now.Sub(last) < r.window {
		return false
	}
	r.warned[userID] = now
	return true
}
