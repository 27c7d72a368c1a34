// Package inproc provides single-node implementations of the Locker and
// RateLimiter ports.
package inproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bytebill/internal/domain"
	"bytebill/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*Locker)(nil)

type keyLock struct {
	token   string
	expires time.Time
	free    chan struct{} // closed on release
}

// Locker is a keyed mutex with TTL expiry. Waiters on one key never block other keys.
type Locker struct {
	mu    sync.Mutex
	held  map[string]*keyLock
	nowFn func() time.Time
}

func NewLocker() *Locker {
	return &Locker{held: map[string]*keyLock{}, nowFn: time.Now}
}

// acquire returns a token, or the channel to wait on.
func (l *Locker) acquire(key string, ttl time.Duration) (string, <-chan struct{}, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if cur, ok := l.held[key]; ok {
		if now.Before(cur.expires) {
			return "", cur.free, cur.expires.Sub(now)
		}
		close(cur.free)
	}
	k := &keyLock{token: uuid.NewString(), expires: now.Add(ttl), free: make(chan struct{})}
	l.held[key] = k
	return k.token, nil, 0
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, _, _ := l.acquire(key, ttl)
	if token == "" {
		return "", domain.ErrLockNotAcquired
	}
	return token, nil
}

func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	for {
		token, free, left := l.acquire(key, ttl)
		if token != "" {
			return token, nil
		}
		expiry := time.NewTimer(left)
		select {
		case <-ctx.Done():
			expiry.Stop()
			return "", fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
		case <-free:
		case <-expiry.C:
		}
		expiry.Stop()
	}
}

// Unlock is a no-op for a stale token.
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
		close(cur.free)
	}
	return nil
}
