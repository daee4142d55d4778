package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/campus-issue-service/internal/domain"
)

const pendingQueueKey = "issues:pending"

// PendingQueueCache keeps the shared pending queue in Redis. The queue is the
// one listing every role reads, so it absorbs most repeat traffic; any issue
// mutation invalidates it.
type PendingQueueCache struct {
	redis *Redis
	ttl   time.Duration
}

// NewPendingQueueCache builds the cache. A zero TTL disables caching.
func NewPendingQueueCache(r *Redis, ttl time.Duration) *PendingQueueCache {
	return &PendingQueueCache{redis: r, ttl: ttl}
}

// Get returns the cached queue, or (nil, false) on miss or unavailability.
func (c *PendingQueueCache) Get(ctx context.Context) ([]domain.Issue, bool) {
	if c == nil || c.redis == nil || c.redis.Client == nil || c.ttl <= 0 {
		return nil, false
	}
	payload, err := c.redis.Client.Get(ctx, pendingQueueKey).Bytes()
	if err != nil {
		return nil, false
	}
	var issues []domain.Issue
	if err := json.Unmarshal(payload, &issues); err != nil {
		return nil, false
	}
	return issues, true
}

// Set stores the queue with the configured TTL. Cache failures are not
// surfaced; the source of truth is the database.
func (c *PendingQueueCache) Set(ctx context.Context, issues []domain.Issue) {
	if c == nil || c.redis == nil || c.redis.Client == nil || c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(issues)
	if err != nil {
		return
	}
	_ = c.redis.Client.Set(ctx, pendingQueueKey, payload, c.ttl).Err()
}

// Invalidate drops the cached queue.
func (c *PendingQueueCache) Invalidate(ctx context.Context) {
	if c == nil || c.redis == nil || c.redis.Client == nil {
		return
	}
	if err := c.redis.Client.Del(ctx, pendingQueueKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return
	}
}
