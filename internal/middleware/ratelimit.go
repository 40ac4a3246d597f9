package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles callers per key, typically the Telegram sender id.
// Each key gets a token bucket refilled at limit per window with a burst of
// limit. Idle buckets are swept lazily on Allow, so no goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing limit events per window per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether one more event for key fits in its budget.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for a full window. A bucket idle that long has
// refilled completely, so dropping it loses no state.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	cutoff := now.Add(-r.window)
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
