//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
)

// startSession redeems a fresh voucher of plan for mac at t0.
func (e *testEngine) startSession(t *testing.T, plan *model.Plan, mac string) *model.Session {
	t.Helper()
	v := e.mustVoucher(t, plan, 30)
	s, err := e.voucherUC.Redeem(context.Background(), v.Code, testDevice(mac), t0)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	return s
}

func TestSessionUseCase_Extend(t *testing.T) {
	ctx := context.Background()

	t.Run("should push the deadline and log the extension", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		s := e.startSession(t, plan, "aa:bb:cc:10:00:01")

		got, err := e.sessionUC.Extend(ctx, s.ID, 600, "outage", "admin", t0.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("Extend: %v", err)
		}

		if want := t0.Add(70 * time.Minute); !got.Deadline().Equal(want) {
			t.Errorf("expected deadline %v, got %v", want, got.Deadline())
		}
		detail, _ := e.sessionUC.GetByID(ctx, s.ID)
		if len(detail.Extensions) != 1 || detail.Extensions[0].GrantedBy != "admin" {
			t.Errorf("expected one logged extension, got %+v", detail.Extensions)
		}
		if e.events.Count(model.AccessGrant) != 2 {
			t.Errorf("expected a second grant event with the new deadline")
		}
	})

	t.Run("should reject non-positive seconds", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.sessionUC.Extend(ctx, "any", 0, "", "admin", t0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject unknown and ended sessions", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		s := e.startSession(t, plan, "aa:bb:cc:10:00:02")
		if _, err := e.sessionUC.Terminate(ctx, s.ID, "manual", t0); err != nil {
			t.Fatalf("Terminate: %v", err)
		}

		_, errEnded := e.sessionUC.Extend(ctx, s.ID, 60, "", "admin", t0)
		_, errUnknown := e.sessionUC.Extend(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", 60, "", "admin", t0)

		if !errors.Is(errEnded, domain.ErrNotActive) {
			t.Errorf("expected ErrNotActive, got %v", errEnded)
		}
		if !errors.Is(errUnknown, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", errUnknown)
		}
	})
}

func TestSessionUseCase_Terminate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
	s := e.startSession(t, plan, "aa:bb:cc:10:00:03")

	got, err := e.sessionUC.Terminate(ctx, s.ID, "abuse", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	again, err := e.sessionUC.Terminate(ctx, s.ID, "abuse", t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second Terminate: %v", err)
	}

	if got.Status != model.SessionStatusTerminated || got.EndReason != "abuse" {
		t.Errorf("unexpected session %+v", got)
	}
	if !again.EndedAt.Equal(*got.EndedAt) {
		t.Error("second terminate must not move the end time")
	}
	if e.events.Count(model.AccessRevoke) != 1 {
		t.Errorf("expected exactly one revoke, got %d", e.events.Count(model.AccessRevoke))
	}
	if cur, _ := e.sessionUC.Get(ctx, s.MAC); cur != nil {
		t.Error("device must have no active session after terminate")
	}
}

func TestSessionUseCase_Logout(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
	s := e.startSession(t, plan, "aa:bb:cc:10:00:04")

	got, err := e.sessionUC.Logout(ctx, s.MAC, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, errAgain := e.sessionUC.Logout(ctx, s.MAC, t0.Add(time.Minute))

	if got.EndReason != "logout" || got.Status != model.SessionStatusTerminated {
		t.Errorf("unexpected session %+v", got)
	}
	if !errors.Is(errAgain, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a device without a session, got %v", errAgain)
	}
}

func TestSessionUseCase_RecordUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("byte deltas are additive in any order", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		a := e.startSession(t, plan, "aa:bb:cc:10:00:05")
		b := e.startSession(t, plan, "aa:bb:cc:10:00:06")
		samples := []model.Usage{
			{BytesIn: 100, BytesOut: 10, ElapsedSeconds: 30, At: t0.Add(30 * time.Second)},
			{BytesIn: 250, BytesOut: 0, ElapsedSeconds: 90, At: t0.Add(90 * time.Second)},
			{BytesIn: 0, BytesOut: 40, ElapsedSeconds: 60, At: t0.Add(60 * time.Second)},
		}

		for _, u := range samples {
			if err := e.sessionUC.RecordUsage(ctx, a.ID, u); err != nil {
				t.Fatalf("RecordUsage: %v", err)
			}
		}
		for i := len(samples) - 1; i >= 0; i-- {
			if err := e.sessionUC.RecordUsage(ctx, b.ID, samples[i]); err != nil {
				t.Fatalf("RecordUsage: %v", err)
			}
		}

		ga, _ := e.sessionUC.GetByID(ctx, a.ID)
		gb, _ := e.sessionUC.GetByID(ctx, b.ID)
		for _, s := range []*model.Session{ga, gb} {
			if s.BytesIn != 350 || s.BytesOut != 50 || s.ElapsedSeconds != 90 {
				t.Errorf("unexpected totals in=%d out=%d elapsed=%d", s.BytesIn, s.BytesOut, s.ElapsedSeconds)
			}
			if !s.LastActivity.Equal(t0.Add(90 * time.Second)) {
				t.Errorf("unexpected last activity %v", s.LastActivity)
			}
		}
	})

	t.Run("negative deltas are rejected", func(t *testing.T) {
		e := newTestEngine(t)
		err := e.sessionUC.RecordUsage(ctx, "x", model.Usage{BytesIn: -1})
		if !errors.Is(err, domain.ErrNegativeUsage) {
			t.Fatalf("expected ErrNegativeUsage, got %v", err)
		}
	})

	t.Run("by device without a session is a no-op", func(t *testing.T) {
		e := newTestEngine(t)
		s, err := e.sessionUC.RecordUsageByDevice(ctx, "aa:bb:cc:10:00:07", model.Usage{BytesIn: 1})
		if err != nil || s != nil {
			t.Fatalf("expected nil, nil; got %v, %v", s, err)
		}
	})

	t.Run("by device adds to the active session", func(t *testing.T) {
		e := newTestEngine(t)
		plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
		e.startSession(t, plan, "aa:bb:cc:10:00:08")

		s, err := e.sessionUC.RecordUsageByDevice(ctx, "aa:bb:cc:10:00:08", model.Usage{BytesIn: 7, BytesOut: 3, At: t0})
		if err != nil {
			t.Fatalf("RecordUsageByDevice: %v", err)
		}
		if s.DataUsed() != 10 {
			t.Errorf("expected 10 bytes used, got %d", s.DataUsed())
		}
	})
}

func TestSessionUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	plan := e.mustPlan(t, "Hour", model.PlanKindHourly, 3600, 0, 50)
	a := e.startSession(t, plan, "aa:bb:cc:10:00:09")
	e.startSession(t, plan, "aa:bb:cc:10:00:0a")
	_ = e.sessionUC.RecordUsage(ctx, a.ID, model.Usage{BytesIn: 1000, BytesOut: 24})
	_, _ = e.sessionUC.Terminate(ctx, a.ID, "manual", t0)

	st, err := e.sessionUC.Stats(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if st.Total != 2 || st.Active != 1 || st.DataTotal != 1024 || st.DevicesToday != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}
