package inproc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bytebill/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key: burst = limit, refilled over window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	nowFn   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: map[string]*bucket{}, idle: 10 * time.Minute, nowFn: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1), nil
}

func (r *RateLimiter) Exceeded(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok {
		return false, nil
	}
	return b.lim.TokensAt(r.nowFn()) < 1, nil
}

// Prune drops buckets idle for longer than the idle horizon.
func (r *RateLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	n := 0
	for k, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.idle {
			delete(r.buckets, k)
			n++
		}
	}
	return n
}
