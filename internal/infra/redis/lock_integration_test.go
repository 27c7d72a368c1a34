//go:build integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("BYTEBILL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BYTEBILL_TEST_REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(newTestClient(t))
	key := "lock:test:" + time.Now().Format(time.RFC3339Nano)

	token, err := l.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, key, 5*time.Second)
	assert.True(t, errors.Is(err, domain.ErrLockNotAcquired))

	wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(wctx, key, 5*time.Second)
	assert.True(t, errors.Is(err, domain.ErrLockNotAcquired))

	require.NoError(t, l.Unlock(ctx, key, "not-the-holder"))
	_, err = l.TryLock(ctx, key, 5*time.Second)
	assert.Error(t, err, "a foreign token must not release the lock")

	require.NoError(t, l.Unlock(ctx, key, token))
	token2, err := l.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Unlock(ctx, key, token2))
}
