package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-engine/internal/automation"
	"github.com/ignite/audience-engine/internal/config"
)

// New returns the trigger queue selected by cfg.Backend. redisClient is only
// used by the redis backend.
func New(ctx context.Context, cfg config.QueueConfig, redisClient *redis.Client) (automation.Enqueuer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.QueueBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisQueue(redisClient, cfg.RedisKey), nil
	case config.QueueBackendSQS:
		if cfg.SQSQueueURL == "" {
			return nil, fmt.Errorf("sqs backend requires a queue url")
		}
		q, err := NewSQSQueue(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
