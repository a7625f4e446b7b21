// ABOUTME: Redis-backed advisory lock for multi-instance deployments
// ABOUTME: SET NX with a TTL gives atomic acquire and automatic staleness expiry

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker on SET NX with TTL. The TTL doubles as the
// staleness window: a crashed holder's lock simply expires.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker wraps an existing client. A zero ttl uses DefaultStaleAfter.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock:conversation:"
	}
	if ttl <= 0 {
		ttl = DefaultStaleAfter
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	return nil
}
