// ABOUTME: Redis-backed FIFO queue shared across gateway instances
// ABOUTME: Uses a Lua script for atomic membership-checked enqueue

package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "human:queue"

// enqueueScript appends the user only when not already listed, atomically.
var enqueueScript = redis.NewScript(`
if redis.call('LPOS', KEYS[1], ARGV[1]) == false then
	redis.call('RPUSH', KEYS[1], ARGV[1])
end
return redis.call('LLEN', KEYS[1])
`)

// RedisQueue stores the waiting list in a Redis list so several gateway
// instances can share one queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue wraps an existing client. An empty key falls back to the
// default list name.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID string) error {
	if err := enqueueScript.Run(ctx, q.client, []string{q.key}, userID).Err(); err != nil {
		return fmt.Errorf("enqueueing %s: %w", userID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, userID string) error {
	if err := q.client.LRem(ctx, q.key, 0, userID).Err(); err != nil {
		return fmt.Errorf("dequeueing %s: %w", userID, err)
	}
	return nil
}

func (q *RedisQueue) Position(ctx context.Context, userID string) (int, error) {
	entries, err := q.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range entries {
		if id == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (q *RedisQueue) Snapshot(ctx context.Context) ([]string, error) {
	entries, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	return entries, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}
	return int(n), nil
}
