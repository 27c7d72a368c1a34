// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
	"bytebill/internal/infra/metrics"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase owns the session lifecycle. Creation is only reachable through
// voucher redemption and payment resolution, which call the Create* methods
// inside their own transaction and then Announce after commit.
type SessionUseCase interface {
	CreateFromVoucher(ctx context.Context, tx repository.Tx, v *model.Voucher, plan *model.Plan, device model.Device, now time.Time) (*model.Session, error)
	CreateFromPayment(ctx context.Context, tx repository.Tx, p *model.PaymentRequest, plan *model.Plan, device model.Device, now time.Time) (*model.Session, error)
	// Announce publishes the grant for a committed session.
	Announce(ctx context.Context, s *model.Session)

	Extend(ctx context.Context, id string, seconds int64, reason, grantedBy string, now time.Time) (*model.Session, error)
	Terminate(ctx context.Context, id, reason string, now time.Time) (*model.Session, error)
	// Expire ends s with status expired; false when it had already ended.
	Expire(ctx context.Context, s *model.Session, reason string, now time.Time) (bool, error)
	Logout(ctx context.Context, mac string, now time.Time) (*model.Session, error)

	RecordUsage(ctx context.Context, id string, u model.Usage) error
	// RecordUsageByDevice returns nil, nil when the device has no active session.
	RecordUsageByDevice(ctx context.Context, mac string, u model.Usage) (*model.Session, error)

	// Get returns the active session for mac, or nil, nil.
	Get(ctx context.Context, mac string) (*model.Session, error)
	GetByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, f model.SessionFilter) ([]*model.Session, error)
	Stats(ctx context.Context, now time.Time) (model.SessionStats, error)
}

type sessionUC struct {
	sessions repository.SessionRepository
	tm       repository.TransactionManager
	events   adapter.AccessEventPublisher
	log      *zerolog.Logger
}

func NewSessionUseCase(sessions repository.SessionRepository, tm repository.TransactionManager, events adapter.AccessEventPublisher, logger *zerolog.Logger) *sessionUC {
	l := logger.With().Str("component", "SessionUC").Logger()
	return &sessionUC{sessions: sessions, tm: tm, events: events, log: &l}
}

func (u *sessionUC) CreateFromVoucher(ctx context.Context, tx repository.Tx, v *model.Voucher, plan *model.Plan, device model.Device, now time.Time) (*model.Session, error) {
	if v == nil {
		return nil, domain.ErrInvalidArgument
	}
	return u.create(ctx, tx, plan, device, model.SessionOriginVoucher, v.Code, 0, now)
}

func (u *sessionUC) CreateFromPayment(ctx context.Context, tx repository.Tx, p *model.PaymentRequest, plan *model.Plan, device model.Device, now time.Time) (*model.Session, error) {
	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	return u.create(ctx, tx, plan, device, model.SessionOriginPayment, p.ID, p.Amount, now)
}

func (u *sessionUC) create(ctx context.Context, tx repository.Tx, plan *model.Plan, device model.Device, origin model.SessionOrigin, ref string, amount int64, now time.Time) (*model.Session, error) {
	if plan == nil {
		return nil, domain.ErrInvalidPlan
	}
	existing, err := u.sessions.FindActiveByMAC(ctx, tx, device.MAC)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrDeviceAlreadyActive
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	s, err := model.NewSession(plan, device, origin, ref, amount, now)
	if err != nil {
		return nil, err
	}
	if err := u.sessions.Create(ctx, tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (u *sessionUC) Announce(ctx context.Context, s *model.Session) {
	if s == nil {
		return
	}
	metrics.IncSessionStarted(string(s.Origin))
	u.publishGrant(ctx, s, s.StartedAt)
	u.log.Info().
		Str("session_id", s.ID).
		Str("mac", s.MAC).
		Str("origin", string(s.Origin)).
		Time("deadline", s.Deadline()).
		Msg("session started")
}

func (u *sessionUC) Extend(ctx context.Context, id string, seconds int64, reason, grantedBy string, now time.Time) (*model.Session, error) {
	ext, err := model.NewExtension(id, seconds, reason, grantedBy, now)
	if err != nil {
		return nil, err
	}

	var out *model.Session
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.sessions.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.Active() {
			return domain.ErrNotActive
		}
		ok, err := u.sessions.AddExtension(ctx, tx, ext)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotActive
		}
		s.ExtensionSeconds += ext.Seconds
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.publishGrant(ctx, out, now)
	u.log.Info().
		Str("session_id", id).
		Int64("seconds", seconds).
		Str("granted_by", grantedBy).
		Str("reason", reason).
		Msg("session extended")
	return out, nil
}

func (u *sessionUC) Terminate(ctx context.Context, id, reason string, now time.Time) (*model.Session, error) {
	if reason == "" {
		reason = "terminated"
	}
	ended, err := u.sessions.End(ctx, repository.NoTX, id, model.SessionStatusTerminated, reason, now)
	if err != nil {
		return nil, err
	}
	s, err := u.sessions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if ended {
		u.ended(ctx, s, now)
	}
	return s, nil
}

func (u *sessionUC) Expire(ctx context.Context, s *model.Session, reason string, now time.Time) (bool, error) {
	if s == nil {
		return false, domain.ErrInvalidArgument
	}
	ended, err := u.sessions.End(ctx, repository.NoTX, s.ID, model.SessionStatusExpired, reason, now)
	if err != nil || !ended {
		return false, err
	}
	at := now.UTC()
	s.Status, s.EndReason, s.EndedAt = model.SessionStatusExpired, reason, &at
	u.ended(ctx, s, now)
	return true, nil
}

func (u *sessionUC) Logout(ctx context.Context, mac string, now time.Time) (*model.Session, error) {
	s, err := u.Get(ctx, mac)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return u.Terminate(ctx, s.ID, "logout", now)
}

func (u *sessionUC) ended(ctx context.Context, s *model.Session, now time.Time) {
	metrics.IncSessionEnded(string(s.Status))
	u.events.Publish(ctx, model.AccessEvent{
		Type:      model.AccessRevoke,
		SessionID: s.ID,
		MAC:       s.MAC,
		IP:        s.IP,
		Reason:    s.EndReason,
		At:        now.UTC(),
	})
	u.log.Info().
		Str("session_id", s.ID).
		Str("mac", s.MAC).
		Str("status", string(s.Status)).
		Str("reason", s.EndReason).
		Msg("session ended")
}

func (u *sessionUC) publishGrant(ctx context.Context, s *model.Session, at time.Time) {
	deadline := s.Deadline()
	u.events.Publish(ctx, model.AccessEvent{
		Type:      model.AccessGrant,
		SessionID: s.ID,
		MAC:       s.MAC,
		IP:        s.IP,
		Deadline:  &deadline,
		At:        at.UTC(),
	})
}

func (u *sessionUC) RecordUsage(ctx context.Context, id string, usage model.Usage) error {
	if err := usage.Validate(); err != nil {
		return err
	}
	if err := u.sessions.AddUsage(ctx, repository.NoTX, id, usage); err != nil {
		return err
	}
	metrics.AddUsageBytes(usage.BytesIn, usage.BytesOut)
	return nil
}

func (u *sessionUC) RecordUsageByDevice(ctx context.Context, mac string, usage model.Usage) (*model.Session, error) {
	if err := usage.Validate(); err != nil {
		return nil, err
	}
	s, err := u.Get(ctx, mac)
	if err != nil || s == nil {
		return nil, err
	}
	if err := u.RecordUsage(ctx, s.ID, usage); err != nil {
		return nil, err
	}
	s.BytesIn += usage.BytesIn
	s.BytesOut += usage.BytesOut
	s.ElapsedSeconds = max(s.ElapsedSeconds, usage.ElapsedSeconds)
	if usage.At.After(s.LastActivity) {
		s.LastActivity = usage.At
	}
	return s, nil
}

func (u *sessionUC) Get(ctx context.Context, mac string) (*model.Session, error) {
	s, err := u.sessions.FindActiveByMAC(ctx, repository.NoTX, mac)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (u *sessionUC) GetByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := u.sessions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	exts, err := u.sessions.ListExtensions(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	s.Extensions = exts
	return s, nil
}

func (u *sessionUC) List(ctx context.Context, f model.SessionFilter) ([]*model.Session, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.sessions.List(ctx, repository.NoTX, f)
}

func (u *sessionUC) Stats(ctx context.Context, now time.Time) (model.SessionStats, error) {
	return u.sessions.Stats(ctx, repository.NoTX, startOfDay(now))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
