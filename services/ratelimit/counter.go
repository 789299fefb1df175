package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Counter tracks per-user request counts over a sliding window. Observe
// records the current request and returns the count including it; the result
// feeds rate-limit policy evaluation, which decides what to do with it.
type Counter interface {
	Observe(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error)
}

// MemoryCounter is an in-process sliding-window counter. Suitable for a
// single gateway instance; use the Redis counter when running more than one.
type MemoryCounter struct {
	mu      sync.Mutex
	events  map[uuid.UUID][]time.Time
	logger  *zap.Logger
	now     func() time.Time
	maxKeep time.Duration
}

// NewMemoryCounter creates a new in-memory sliding-window counter
func NewMemoryCounter(logger *zap.Logger) *MemoryCounter {
	return &MemoryCounter{
		events:  make(map[uuid.UUID][]time.Time),
		logger:  logger,
		now:     time.Now,
		maxKeep: 24 * time.Hour,
	}
}

// Observe records the request and returns the count within the window,
// including this request
func (c *MemoryCounter) Observe(_ context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-window)
	keepCutoff := now.Add(-c.maxKeep)

	kept := c.events[userID][:0]
	count := 1
	for _, ts := range c.events[userID] {
		if ts.Before(keepCutoff) {
			continue
		}
		kept = append(kept, ts)
		if !ts.Before(cutoff) {
			count++
		}
	}
	c.events[userID] = append(kept, now)

	return count, nil
}
