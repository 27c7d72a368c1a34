//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
	"bytebill/internal/usecase"
)

func TestStatsUseCase_Dashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates sessions, vouchers, revenue and uptime", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		e.startSession(t, plan, "aa:bb:cc:50:00:01")
		e.mustVoucher(t, plan, 30)
		p, _ := e.paymentUC.Initiate(ctx, usecase.InitiatePaymentInput{Phone: "0712345678", PlanID: plan.ID}, t0)
		_, _ = e.paymentUC.OnCallback(ctx, p.CorrelationID, completed(p, "QK9"), t0)

		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{Currency: "KES"}, newTestLogger())
		d, err := uc.Dashboard(ctx, t0.Add(time.Hour))

		if err != nil {
			t.Fatalf("Dashboard: %v", err)
		}
		if d.Sessions.Active != 1 || d.Vouchers.Total != 2 || d.Vouchers.Used != 1 {
			t.Errorf("unexpected counts %+v / %+v", d.Sessions, d.Vouchers)
		}
		if d.Revenue.Today != 50 || d.Revenue.Month != 50 || d.Revenue.Total != 50 {
			t.Errorf("unexpected revenue %+v", d.Revenue)
		}
		if d.Uptime != time.Hour || d.Currency != "KES" {
			t.Errorf("unexpected uptime/currency %v %s", d.Uptime, d.Currency)
		}
	})

	t.Run("tolerates missing host info", func(t *testing.T) {
		e := newTestEngine(t)
		host := MockHostInfo{UptimeFunc: func(ctx context.Context) (uint64, error) { return 0, errors.New("no /proc") }}
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, host, usecase.StatsPolicy{}, newTestLogger())

		d, err := uc.Dashboard(ctx, t0)

		if err != nil || d.Uptime != 0 {
			t.Fatalf("expected zero uptime without error, got %v (%v)", d, err)
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		e := newTestEngine(t)
		boom := errors.New("boom")
		e.payments.SumCompletedFunc = func(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
			return 0, boom
		}
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())

		_, err := uc.Dashboard(ctx, t0)

		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}

func TestStatsUseCase_RevenueWindows(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	var sinces []time.Time
	e.payments.SumCompletedFunc = func(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
		sinces = append(sinces, since)
		return 0, nil
	}
	uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())
	now := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

	if _, err := uc.Revenue(ctx, now); err != nil {
		t.Fatalf("Revenue: %v", err)
	}

	want := []time.Time{
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		{},
	}
	if len(sinces) != len(want) {
		t.Fatalf("expected %d queries, got %d", len(want), len(sinces))
	}
	for i := range want {
		if !sinces[i].Equal(want[i]) {
			t.Errorf("window %d: expected %v, got %v", i, want[i], sinces[i])
		}
	}
}

// seedSessionAt stores an active session for mac started at at with the given traffic.
func (e *testEngine) seedSessionAt(t *testing.T, plan *model.Plan, mac string, at time.Time, in, out int64) {
	t.Helper()
	s, err := model.NewSession(plan, testDevice(mac), model.SessionOriginVoucher, "ref-"+mac, 0, at)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.BytesIn, s.BytesOut = in, out
	if err := e.sessRepo.Create(context.Background(), repository.NoTX, s); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestStatsUseCase_Series(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(30 * time.Minute) // 10:30 UTC

	t.Run("fills every hourly bucket of the last day", func(t *testing.T) {
		// --- Arrange ---
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		e.seedSessionAt(t, plan, "aa:bb:cc:60:00:01", t0.Add(5*time.Minute), 100, 10)
		e.seedSessionAt(t, plan, "aa:bb:cc:60:00:02", t0.Add(20*time.Minute), 200, 20)
		e.seedSessionAt(t, plan, "aa:bb:cc:60:00:03", t0.Add(-3*time.Hour), 1, 1)
		e.seedSessionAt(t, plan, "aa:bb:cc:60:00:04", t0.Add(-30*time.Hour), 1, 1)
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())

		// --- Act ---
		s, err := uc.Series(ctx, model.ChartSessions, model.Period24h, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Series: %v", err)
		}
		if len(s.Buckets) != 24 || s.Step != time.Hour {
			t.Fatalf("expected 24 hourly buckets, got %d of %v", len(s.Buckets), s.Step)
		}
		if first := s.Buckets[0].Start; !first.Equal(t0.Add(-23 * time.Hour)) {
			t.Errorf("expected first bucket at %v, got %v", t0.Add(-23*time.Hour), first)
		}
		last := s.Buckets[23]
		if !last.Start.Equal(t0) || last.Count != 2 || last.BytesIn != 300 || last.BytesOut != 30 {
			t.Errorf("unexpected current bucket %+v", last)
		}
		if b := s.Buckets[20]; b.Count != 1 {
			t.Errorf("expected the 07:00 bucket to hold one session, got %+v", b)
		}
		var total int64
		for _, b := range s.Buckets {
			total += b.Count
		}
		if total != 3 {
			t.Errorf("expected sessions older than the window to be left out, got %d", total)
		}
	})

	t.Run("charts daily revenue with the default period", func(t *testing.T) {
		// --- Arrange ---
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		p, _ := e.paymentUC.Initiate(ctx, usecase.InitiatePaymentInput{Phone: "0712345678", PlanID: plan.ID}, t0)
		if _, err := e.paymentUC.OnCallback(ctx, p.CorrelationID, completed(p, "QK9"), t0); err != nil {
			t.Fatalf("OnCallback: %v", err)
		}
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())

		// --- Act ---
		s, err := uc.Series(ctx, model.ChartRevenue, "", now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Series: %v", err)
		}
		if s.Period != model.Period30d || len(s.Buckets) != 30 || s.Step != 24*time.Hour {
			t.Fatalf("expected 30 daily buckets, got %s / %d / %v", s.Period, len(s.Buckets), s.Step)
		}
		today := s.Buckets[29]
		if !today.Start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) || today.Amount != 50 || today.Count != 1 {
			t.Errorf("unexpected bucket for today %+v", today)
		}
		if s.Buckets[0].Amount != 0 || !s.Buckets[0].Start.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected first bucket %+v", s.Buckets[0])
		}
	})

	t.Run("rejects unknown charts and periods", func(t *testing.T) {
		e := newTestEngine(t)
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())

		_, kindErr := uc.Series(ctx, "visitors", model.Period7d, now)
		_, periodErr := uc.Series(ctx, model.ChartDataUsage, "90d", now)

		if !errors.Is(kindErr, domain.ErrInvalidChart) || !errors.Is(periodErr, domain.ErrInvalidArgument) {
			t.Fatalf("expected validation errors, got %v / %v", kindErr, periodErr)
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		e := newTestEngine(t)
		boom := errors.New("boom")
		e.payments.RevenueBucketsFunc = func(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
			return nil, boom
		}
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{}, usecase.StatsPolicy{}, newTestLogger())

		_, err := uc.Series(ctx, model.ChartRevenue, model.Period7d, now)

		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}

func TestStatsUseCase_Alerts(t *testing.T) {
	ctx := context.Background()

	t.Run("raises stock, expiry and load alerts past their thresholds", func(t *testing.T) {
		// --- Arrange ---
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		e.mustVoucher(t, plan, 1)
		e.mustVoucher(t, plan, 30)
		e.seedSessionAt(t, plan, "aa:bb:cc:70:00:01", t0, 0, 0)
		e.seedSessionAt(t, plan, "aa:bb:cc:70:00:02", t0, 0, 0)
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{},
			usecase.StatsPolicy{LowVoucherStock: 5, BusySessions: 1}, newTestLogger())

		// --- Act ---
		alerts, err := uc.Alerts(ctx, t0.Add(48*time.Hour))

		// --- Assert ---
		if err != nil {
			t.Fatalf("Alerts: %v", err)
		}
		got := map[string]model.Alert{}
		for _, a := range alerts {
			got[a.Code] = a
		}
		if a := got["expired_vouchers"]; a.Count != 1 || a.Level != model.AlertWarning {
			t.Errorf("unexpected expiry alert %+v", a)
		}
		if a := got["low_voucher_stock"]; a.Count != 1 || a.Level != model.AlertInfo {
			t.Errorf("unexpected stock alert %+v", a)
		}
		if a := got["busy_sessions"]; a.Count != 2 || a.Message != "2 active sessions, monitor bandwidth" {
			t.Errorf("unexpected load alert %+v", a)
		}
	})

	t.Run("stays quiet when stock and load are healthy", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		for i := 0; i < 3; i++ {
			e.mustVoucher(t, plan, 30)
		}
		uc := usecase.NewStatsUseCase(e.sessionUC, e.sessRepo, e.vouchers, e.payments, MockHostInfo{},
			usecase.StatsPolicy{LowVoucherStock: 3}, newTestLogger())

		alerts, err := uc.Alerts(ctx, t0)

		if err != nil || len(alerts) != 0 {
			t.Fatalf("expected no alerts, got %+v (%v)", alerts, err)
		}
	})
}
