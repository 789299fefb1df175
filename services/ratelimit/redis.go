package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisCounter is a sliding-window counter backed by Redis sorted sets,
// shared across gateway instances
type RedisCounter struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisCounter creates a new Redis-backed sliding-window counter
func NewRedisCounter(client *redis.Client, logger *zap.Logger) *RedisCounter {
	return &RedisCounter{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Observe records the request and returns the count within the window,
// including this request. Each request is a sorted-set member scored by its
// nanosecond timestamp; members outside the window are trimmed on the way in.
func (c *RedisCounter) Observe(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	now := c.now()
	key := fmt.Sprintf("ratelimit:%s", userID)
	// Timestamp alone is not unique across instances or within one
	// nanosecond; the uuid suffix keeps concurrent requests as distinct
	// members.
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())
	cutoff := now.Add(-window).UnixNano()

	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to observe rate limit event: %w", err)
	}

	return int(countCmd.Val()), nil
}
