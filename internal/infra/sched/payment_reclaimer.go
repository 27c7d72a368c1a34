package sched

import (
	"context"
	"time"

	ucport "bytebill/internal/domain/ports/usecase"
	"bytebill/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PaymentReclaimer periodically fails pending payment requests whose callback never
// arrived, freeing the phone for a new request. Status polling reclaims lazily too;
// this covers phones nobody polls.
type PaymentReclaimer struct {
	reclaimer ucport.StaleReclaimer
	interval  time.Duration
	nowFn     func() time.Time
	log       *zerolog.Logger
}

func NewPaymentReclaimer(reclaimer ucport.StaleReclaimer, interval time.Duration, logger *zerolog.Logger) *PaymentReclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	compLog := logger.With().Str("component", "PaymentReclaimer").Logger()
	return &PaymentReclaimer{reclaimer: reclaimer, interval: interval, nowFn: time.Now, log: &compLog}
}

func (w *PaymentReclaimer) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reclaimer")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reclaimer")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReclaimer) tick(ctx context.Context) {
	start := time.Now()
	n, err := w.reclaimer.ReclaimStale(ctx, w.nowFn().UTC())
	metrics.ObserveJob("payment_reclaim", time.Since(start), err)
	if err != nil {
		w.log.Error().Err(err).Msg("reclaim stale payments failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payment requests reclaimed")
	}
}
