//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeClient) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.counts[key]
	if !ok {
		return "", goredis.Nil
	}
	return strconv.FormatInt(n, 10), nil
}
func (f *fakeClient) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return nil
}
func (f *fakeClient) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeClient) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then refuses", func(t *testing.T) {
		fc := newFakeClient()
		rl := NewRateLimiter(fc)

		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "redeem:aa:bb", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "attempt %d", i+1)
		}
		ok, err := rl.Allow(ctx, "redeem:aa:bb", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, time.Minute, fc.expires["rate_limit:redeem:aa:bb"], "window set on first hit")
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewRateLimiter(newFakeClient())
		ok1, _ := rl.Allow(ctx, "a", 1, time.Minute)
		ok2, _ := rl.Allow(ctx, "b", 1, time.Minute)
		assert.True(t, ok1)
		assert.True(t, ok2)
	})

	t.Run("surfaces backend errors", func(t *testing.T) {
		fc := newFakeClient()
		fc.incrErr = errors.New("conn refused")
		_, err := NewRateLimiter(fc).Allow(ctx, "a", 1, time.Minute)
		assert.Error(t, err)
	})
}

func TestRateLimiter_Exceeded(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(newFakeClient())

	fresh, err := rl.Exceeded(ctx, "redeem:aa:bb", 2, time.Minute)
	require.NoError(t, err)
	_, _ = rl.Allow(ctx, "redeem:aa:bb", 2, time.Minute)
	once, err := rl.Exceeded(ctx, "redeem:aa:bb", 2, time.Minute)
	require.NoError(t, err)
	_, _ = rl.Allow(ctx, "redeem:aa:bb", 2, time.Minute)
	full, err := rl.Exceeded(ctx, "redeem:aa:bb", 2, time.Minute)
	require.NoError(t, err)

	assert.False(t, fresh)
	assert.False(t, once)
	assert.True(t, full)
}
