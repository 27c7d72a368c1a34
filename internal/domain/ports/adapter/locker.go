package adapter

import (
	"context"
	"time"
)

// Locker provides per-key critical sections. Keys are independent, so unrelated
// devices never wait on each other.
type Locker interface {
	// Lock blocks until the key is acquired or ctx is done (domain.ErrLockNotAcquired).
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// TryLock makes a single attempt and fails with domain.ErrLockNotAcquired if held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts attempts per key within a window.
type RateLimiter interface {
	// Allow records one attempt and reports whether it was within limit.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Exceeded reports whether the next attempt would be refused, without recording one.
	Exceeded(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
