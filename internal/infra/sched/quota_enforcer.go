package sched

import (
	"context"
	"fmt"
	"time"

	"bytebill/internal/domain/ports/adapter"
	ucport "bytebill/internal/domain/ports/usecase"
	"bytebill/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// QuotaEnforcer periodically ends sessions whose time or data allowance is used up.
type QuotaEnforcer struct {
	interval time.Duration
	sweeper  ucport.QuotaSweeper
	notifier adapter.OperatorNotifier
	nowFn    func() time.Time
	log      *zerolog.Logger
}

func NewQuotaEnforcer(interval time.Duration, sweeper ucport.QuotaSweeper, notifier adapter.OperatorNotifier, logger *zerolog.Logger) *QuotaEnforcer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	compLog := logger.With().Str("component", "QuotaEnforcer").Logger()
	return &QuotaEnforcer{
		interval: interval,
		sweeper:  sweeper,
		notifier: notifier,
		nowFn:    time.Now,
		log:      &compLog,
	}
}

func (w *QuotaEnforcer) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting quota enforcer")
	// Run once on startup so a restart re-derives remaining quota immediately.
	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping quota enforcer")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *QuotaEnforcer) runSweep(ctx context.Context) {
	start := time.Now()
	res, err := w.sweeper.Sweep(ctx, w.nowFn().UTC())
	metrics.ObserveJob("quota_sweep", time.Since(start), err)
	if err != nil {
		w.log.Error().Err(err).Msg("quota sweep failed")
		return
	}
	if res.Expired > 0 {
		w.log.Info().Int("checked", res.Checked).Int("expired", res.Expired).Msg("sessions expired")
	}
	if res.Failed > 0 {
		w.log.Warn().Int("failed", res.Failed).Msg("some sessions could not be expired")
		msg := fmt.Sprintf("Quota sweep: %d of %d sessions could not be expired; they will be retried next pass.", res.Failed, res.Checked)
		if err := w.notifier.Notify(ctx, msg); err != nil {
			w.log.Warn().Err(err).Msg("operator notify failed")
		}
	}
}
