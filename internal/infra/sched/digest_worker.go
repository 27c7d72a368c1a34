package sched

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/infra/metrics"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// DashboardSource is what the digest needs from the stats use case.
type DashboardSource interface {
	Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error)
}

// DigestWorker sends the operator a periodic summary of the hotspot.
type DigestWorker struct {
	interval time.Duration
	stats    DashboardSource
	notifier adapter.OperatorNotifier
	nowFn    func() time.Time
	log      *zerolog.Logger
}

func NewDigestWorker(interval time.Duration, stats DashboardSource, notifier adapter.OperatorNotifier, logger *zerolog.Logger) *DigestWorker {
	compLog := logger.With().Str("component", "DigestWorker").Logger()
	return &DigestWorker{
		interval: interval,
		stats:    stats,
		notifier: notifier,
		nowFn:    time.Now,
		log:      &compLog,
	}
}

func (w *DigestWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info().Msg("digest disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	w.log.Info().Dur("interval", w.interval).Msg("Starting digest worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping digest worker")
			return ctx.Err()
		case <-ticker.C:
			w.send(ctx)
		}
	}
}

func (w *DigestWorker) send(ctx context.Context) {
	start := time.Now()
	d, err := w.stats.Dashboard(ctx, w.nowFn().UTC())
	if err == nil {
		err = w.notifier.Notify(ctx, FormatDigest(d))
	}
	metrics.ObserveJob("digest", time.Since(start), err)
	if err != nil {
		w.log.Error().Err(err).Msg("digest failed")
	}
}

// FormatDigest renders a dashboard as a short plain-text message.
func FormatDigest(d *model.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hotspot digest %s\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Active sessions: %d (started today: %d, devices today: %d)\n",
		d.Sessions.Active, d.Sessions.StartedToday, d.Sessions.DevicesToday)
	fmt.Fprintf(&b, "Data today: %s, total: %s\n",
		humanize.IBytes(uint64(d.Sessions.DataToday)), humanize.IBytes(uint64(d.Sessions.DataTotal)))
	fmt.Fprintf(&b, "Vouchers unused/used/expired: %d/%d/%d\n", d.Vouchers.Unused, d.Vouchers.Used, d.Vouchers.Expired)
	fmt.Fprintf(&b, "Revenue today: %s %s, month: %s %s\n",
		d.Currency, humanize.Comma(d.Revenue.Today), d.Currency, humanize.Comma(d.Revenue.Month))
	if d.Uptime > 0 {
		fmt.Fprintf(&b, "Uptime: %s", d.Uptime.Truncate(time.Minute))
	}
	return strings.TrimRight(b.String(), "\n")
}
