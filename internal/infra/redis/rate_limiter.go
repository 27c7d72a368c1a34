package redis

import (
	"context"
	"strconv"
	"time"

	"bytebill/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter shared by every engine replica.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = rateKey(key)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func (r *RateLimiter) Exceeded(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	v, err := r.client.Get(ctx, rateKey(key))
	if IsMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	count, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, err
	}
	return count >= int64(limit), nil
}

func rateKey(key string) string { return "rate_limit:" + key }
