package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error)
	Revenue(ctx context.Context, now time.Time) (model.RevenueTotals, error)
	// Series returns one chart with every bucket of the period present, oldest first.
	Series(ctx context.Context, kind model.ChartKind, period model.ChartPeriod, now time.Time) (*model.Series, error)
	Alerts(ctx context.Context, now time.Time) ([]model.Alert, error)
}

// StatsPolicy sets the reporting currency and the alert thresholds.
type StatsPolicy struct {
	Currency        string
	LowVoucherStock int64
	BusySessions    int64
}

func (p StatsPolicy) normalized() StatsPolicy {
	if p.Currency == "" {
		p.Currency = model.DefaultCurrency
	}
	if p.LowVoucherStock <= 0 {
		p.LowVoucherStock = 10
	}
	if p.BusySessions <= 0 {
		p.BusySessions = 20
	}
	return p
}

type statsUC struct {
	sessions    SessionUseCase
	sessionRepo repository.SessionRepository
	vouchers    repository.VoucherRepository
	payments    repository.PaymentRepository
	host        adapter.HostInfo
	policy      StatsPolicy

	log *zerolog.Logger
}

func NewStatsUseCase(
	sessions SessionUseCase,
	sessionRepo repository.SessionRepository,
	vouchers repository.VoucherRepository,
	payments repository.PaymentRepository,
	host adapter.HostInfo,
	policy StatsPolicy,
	logger *zerolog.Logger,
) *statsUC {
	return &statsUC{
		sessions:    sessions,
		sessionRepo: sessionRepo,
		vouchers:    vouchers,
		payments:    payments,
		host:        host,
		policy:      policy.normalized(),
		log:         logger,
	}
}

func (s *statsUC) Dashboard(ctx context.Context, now time.Time) (*model.Dashboard, error) {
	d := &model.Dashboard{Currency: s.policy.Currency, GeneratedAt: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.sessions.Stats(gctx, now)
		d.Sessions = st
		return err
	})
	g.Go(func() error {
		c, err := s.vouchers.Counts(gctx, repository.NoTX, now)
		d.Vouchers = c
		return err
	})
	g.Go(func() error {
		r, err := s.Revenue(gctx, now)
		d.Revenue = r
		return err
	})
	g.Go(func() error {
		up, err := s.host.Uptime(gctx)
		if err != nil {
			// uptime is cosmetic
			s.log.Warn().Err(err).Msg("host uptime unavailable")
			return nil
		}
		d.Uptime = time.Duration(up) * time.Second
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *statsUC) Revenue(ctx context.Context, now time.Time) (model.RevenueTotals, error) {
	var r model.RevenueTotals
	var err error
	if r.Today, err = s.payments.SumCompleted(ctx, repository.NoTX, startOfDay(now)); err != nil {
		return r, err
	}
	y, m, _ := now.Date()
	if r.Month, err = s.payments.SumCompleted(ctx, repository.NoTX, time.Date(y, m, 1, 0, 0, 0, 0, now.Location())); err != nil {
		return r, err
	}
	if r.Total, err = s.payments.SumCompleted(ctx, repository.NoTX, time.Time{}); err != nil {
		return r, err
	}
	return r, nil
}

func (s *statsUC) Series(ctx context.Context, kind model.ChartKind, period model.ChartPeriod, now time.Time) (*model.Series, error) {
	if period == "" {
		period = kind.DefaultPeriod()
	}
	if _, err := model.ParseChartPeriod(string(period)); err != nil {
		return nil, err
	}
	from, step, n := period.Window(now)

	var rows []model.Bucket
	var err error
	switch kind {
	case model.ChartSessions, model.ChartDataUsage:
		rows, err = s.sessionRepo.StartBuckets(ctx, repository.NoTX, from, step)
	case model.ChartRevenue:
		rows, err = s.payments.RevenueBuckets(ctx, repository.NoTX, from, step)
	default:
		return nil, domain.ErrInvalidChart
	}
	if err != nil {
		return nil, err
	}

	byStart := make(map[time.Time]model.Bucket, len(rows))
	for _, b := range rows {
		byStart[b.Start.UTC()] = b
	}
	out := &model.Series{Kind: kind, Period: period, Step: step, Buckets: make([]model.Bucket, n)}
	for i := range out.Buckets {
		start := from.Add(time.Duration(i) * step)
		b := byStart[start]
		b.Start = start
		out.Buckets[i] = b
	}
	return out, nil
}

func (s *statsUC) Alerts(ctx context.Context, now time.Time) ([]model.Alert, error) {
	var vc model.VoucherCounts
	var st model.SessionStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vc, err = s.vouchers.Counts(gctx, repository.NoTX, now)
		return err
	})
	g.Go(func() (err error) {
		st, err = s.sessions.Stats(gctx, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	at := now.UTC()
	alerts := []model.Alert{}
	if vc.Expired > 0 {
		alerts = append(alerts, model.Alert{
			Code: "expired_vouchers", Level: model.AlertWarning, Title: "Expired vouchers",
			Message: fmt.Sprintf("%d unused vouchers have expired", vc.Expired), Count: vc.Expired, At: at,
		})
	}
	if vc.Unused < s.policy.LowVoucherStock {
		alerts = append(alerts, model.Alert{
			Code: "low_voucher_stock", Level: model.AlertInfo, Title: "Low voucher stock",
			Message: fmt.Sprintf("only %d vouchers remaining", vc.Unused), Count: vc.Unused, At: at,
		})
	}
	if st.Active > s.policy.BusySessions {
		alerts = append(alerts, model.Alert{
			Code: "busy_sessions", Level: model.AlertWarning, Title: "High concurrent users",
			Message: fmt.Sprintf("%d active sessions, monitor bandwidth", st.Active), Count: st.Active, At: at,
		})
	}
	return alerts, nil
}
