// Package ratelimit limits generation requests per client, in process or
// shared through Redis.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"golang.org/x/time/rate"
)

// MemoryLimiter keeps a token bucket per key
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	perMin  int
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var _ outbound.RateLimiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter allows requestsPerMinute with the given burst on top
func NewMemoryLimiter(requestsPerMinute, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   burst,
		perMin:  requestsPerMinute,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// SetRate changes the limit for existing and future keys
func (l *MemoryLimiter) SetRate(requestsPerMinute, burst int) {
	if burst < 1 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limit = rate.Limit(float64(requestsPerMinute) / 60)
	l.burst = burst
	l.perMin = requestsPerMinute
	now := l.now()
	for _, b := range l.buckets {
		b.limiter.SetLimitAt(now, l.limit)
		b.limiter.SetBurstAt(now, burst)
	}
}

// Allow takes one token for key
func (l *MemoryLimiter) Allow(_ context.Context, key string) (outbound.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	decision := outbound.RateDecision{Limit: l.perMin}
	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 || !reservation.OK() {
		reservation.CancelAt(now)
		decision.RetryAfter = delay
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = int(math.Max(0, math.Floor(b.limiter.TokensAt(now))))
	return decision, nil
}

// Cleanup drops buckets idle for longer than idle and returns how many
// were removed
func (l *MemoryLimiter) Cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run cleans up idle buckets every interval until ctx is done
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(interval)
		}
	}
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
