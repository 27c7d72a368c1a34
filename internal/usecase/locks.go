package usecase

import (
	"context"
	"time"

	"bytebill/internal/domain/ports/adapter"
)

func deviceKey(mac string) string { return "lock:device:" + mac }
func voucherKey(code string) string { return "lock:voucher:" + code }
func paymentKey(corrID string) string { return "lock:payment:" + corrID }
func phoneKey(phone string) string { return "inflight:phone:" + phone }

// LockPolicy bounds how long per-key critical sections are held and awaited.
type LockPolicy struct {
	TTL  time.Duration
	Wait time.Duration
}

func (p LockPolicy) normalized() LockPolicy {
	if p.TTL <= 0 {
		p.TTL = 10 * time.Second
	}
	if p.Wait <= 0 {
		p.Wait = 3 * time.Second
	}
	return p
}

// withKeys acquires keys in the given order, runs fn, then releases in reverse.
// Callers pass keys in the global order device -> voucher|payment.
func withKeys(ctx context.Context, locker adapter.Locker, policy LockPolicy, keys []string, fn func() error) error {
	policy = policy.normalized()
	lctx, cancel := context.WithTimeout(ctx, policy.Wait)
	defer cancel()

	type held struct{ key, token string }
	acquired := make([]held, 0, len(keys))
	defer func() {
		// Unlock must run even if the request context was cancelled.
		uctx := context.WithoutCancel(ctx)
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = locker.Unlock(uctx, acquired[i].key, acquired[i].token)
		}
	}()

	for _, key := range keys {
		token, err := locker.Lock(lctx, key, policy.TTL)
		if err != nil {
			return err
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	return fn()
}
