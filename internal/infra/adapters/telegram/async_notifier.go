package telegram

import (
	"context"
	"time"

	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/infra/metrics"
	"bytebill/internal/infra/worker"
)

var _ adapter.OperatorNotifier = (*AsyncNotifier)(nil)

// AsyncNotifier hands notifications to the worker pool so request paths
// never wait on Telegram.
type AsyncNotifier struct {
	inner   adapter.OperatorNotifier
	pool    *worker.Pool
	timeout time.Duration
}

func NewAsyncNotifier(inner adapter.OperatorNotifier, pool *worker.Pool, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{inner: inner, pool: pool, timeout: timeout}
}

// Notify returns worker.ErrQueueFull when the pool is saturated; the
// message is dropped in that case.
func (a *AsyncNotifier) Notify(_ context.Context, text string) error {
	err := a.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.inner.Notify(ctx, text)
	})
	if err != nil {
		metrics.IncNotification("dropped")
	}
	return err
}
