// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ adapter.Locker = (*RedisLocker)(nil)

const lockRetryEvery = 25 * time.Millisecond

// RedisLocker is a TTL-bounded distributed lock: SETNX with a random token,
// released by a compare-and-delete script so only the holder can unlock.
type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	if !ok {
		return "", domain.ErrLockNotAcquired
	}
	return token, nil
}

// Lock retries until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ticker := time.NewTicker(lockRetryEvery)
	defer ticker.Stop()
	for {
		token, err := l.TryLock(ctx, key, ttl)
		if err == nil {
			return token, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
		}
		if err != domain.ErrLockNotAcquired {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
		case <-ticker.C:
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
