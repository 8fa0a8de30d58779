// Package ratelimit limits how often checks may be requested by hand, per
// tracker, with lazy-refill token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// bucket is a token bucket refilled lazily on use.
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(perMinute int, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(perMinute),
		max:      float64(perMinute),
		rate:     float64(perMinute) / 60.0,
		lastFill: now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

func (b *bucket) take(now time.Time) bool {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *bucket) retryAfter() time.Duration {
	if b.tokens >= 1 {
		return 0
	}
	secs := (1 - b.tokens) / b.rate
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}

// Limiter allows up to PerMinute requests per key, refilled continuously.
// It is safe for concurrent use.
type Limiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter. A perMinute of 0 or less disables limiting.
func New(perMinute int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) Result {
	if l == nil || l.perMinute <= 0 {
		return Result{Allowed: true}
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.perMinute, now)
		l.buckets[key] = b
	}
	if b.take(now) {
		return Result{Allowed: true, Limit: l.perMinute, Remaining: int(b.tokens)}
	}
	return Result{Limit: l.perMinute, RetryAfter: b.retryAfter()}
}
