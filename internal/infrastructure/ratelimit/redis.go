package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding window limiter shared by every replica
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

var _ outbound.RateLimiter = (*RedisLimiter)(nil)

// NewRedisLimiter allows limit requests per window for each key
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "recipegen:rate_limit:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the request and reports whether it fits in the window.
// Rejected requests are not counted.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (outbound.RateDecision, error) {
	now := l.now()
	windowStart := now.Add(-l.window)
	redisKey := l.prefix + key
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	pipe := l.client.TxPipeline()

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	// Count current requests in window
	card := pipe.ZCard(ctx, redisKey)
	// Add current request
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, l.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return outbound.RateDecision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(card.Val())
	decision := outbound.RateDecision{Limit: l.limit}
	if count < l.limit {
		decision.Allowed = true
		decision.Remaining = l.limit - count - 1
		return decision, nil
	}

	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return outbound.RateDecision{}, fmt.Errorf("rate limit rollback failed: %w", err)
	}

	decision.RetryAfter = l.window
	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) == 1 {
		expires := time.Unix(0, int64(oldest[0].Score)).Add(l.window)
		if wait := expires.Sub(now); wait > 0 {
			decision.RetryAfter = wait
		}
	}
	return decision, nil
}
