package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-engine/internal/config"
	"github.com/ignite/audience-engine/internal/domain"
)

// RedisQueue pushes jobs onto a Redis list. Producers LPUSH and consumers
// BRPOP, so the list is FIFO.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue returns a queue on key. An empty key uses the default
// trigger list.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = config.DefaultTriggerQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

// Key returns the list key.
func (q *RedisQueue) Key() string { return q.key }

// Enqueue appends job to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job domain.TriggerJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal trigger job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest job. It returns ErrEmpty when
// nothing arrived in time.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.TriggerJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", q.key, err)
	}
	// res is [key, value]
	var job domain.TriggerJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode trigger job: %w", err)
	}
	return &job, nil
}

// Len returns the number of queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
