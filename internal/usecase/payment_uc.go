// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
	ucport "bytebill/internal/domain/ports/usecase"
	"bytebill/internal/infra/metrics"
)

// Compile-time check
var (
	_ PaymentUseCase        = (*paymentUC)(nil)
	_ ucport.StaleReclaimer = (*paymentUC)(nil)
)

const reclaimedDesc = "reclaimed: no callback within timeout"

type InitiatePaymentInput struct {
	Phone  string
	PlanID string
	// Device is optional; when known, a completed callback starts the session directly.
	Device *model.Device
}

// PaymentPolicy bounds the provider round-trip and the life of a pending request.
type PaymentPolicy struct {
	PendingTimeout  time.Duration
	ProviderTimeout time.Duration
	Currency        string
	Reference       string
	ReclaimBatch    int
}

func (p PaymentPolicy) normalized() PaymentPolicy {
	if p.PendingTimeout <= 0 {
		p.PendingTimeout = 5 * time.Minute
	}
	if p.ProviderTimeout <= 0 {
		p.ProviderTimeout = 15 * time.Second
	}
	if p.Currency == "" {
		p.Currency = model.DefaultCurrency
	}
	if p.Reference == "" {
		p.Reference = "ByteBill"
	}
	if p.ReclaimBatch <= 0 {
		p.ReclaimBatch = 200
	}
	return p
}

type PaymentUseCase interface {
	// Initiate asks the provider to charge phone for plan and records a pending request.
	Initiate(ctx context.Context, in InitiatePaymentInput, now time.Time) (*model.PaymentRequest, error)
	// OnCallback resolves a pending request exactly once; repeats are no-ops.
	OnCallback(ctx context.Context, correlationID string, res model.CallbackResult, now time.Time) (*model.PaymentRequest, error)
	// Status reports the request, reclaiming it first when it has gone stale.
	Status(ctx context.Context, correlationID string, now time.Time) (*model.PaymentRequest, error)
	// Claim starts a session from a completed payment that has not funded one yet.
	Claim(ctx context.Context, correlationID string, device model.Device, now time.Time) (*model.Session, error)
	ReclaimStale(ctx context.Context, now time.Time) (int, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	sessions SessionUseCase
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	locker   adapter.Locker
	notifier adapter.OperatorNotifier
	policy   PaymentPolicy
	locks    LockPolicy
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	sessions SessionUseCase,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	notifier adapter.OperatorNotifier,
	policy PaymentPolicy,
	locks LockPolicy,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	policy = policy.normalized()
	locks = locks.normalized()
	// The phone reservation spans the provider call.
	if floor := policy.ProviderTimeout + time.Second; locks.TTL < floor {
		locks.TTL = floor
	}
	return &paymentUC{
		payments: payments,
		plans:    plans,
		sessions: sessions,
		tm:       tm,
		gateway:  gateway,
		locker:   locker,
		notifier: notifier,
		policy:   policy,
		locks:    locks,
		log:      &l,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, in InitiatePaymentInput, now time.Time) (*model.PaymentRequest, error) {
	phone, err := model.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, in.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrPlanNotFound
	}

	// One request per phone: the reservation covers the window between the
	// pending check and the insert, including the provider round-trip.
	key := phoneKey(phone)
	token, err := u.locker.TryLock(ctx, key, u.locks.TTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return nil, domain.ErrRequestInFlight
		}
		return nil, err
	}
	defer func() { _ = u.locker.Unlock(context.WithoutCancel(ctx), key, token) }()

	existing, err := u.payments.FindPendingByPhone(ctx, repository.NoTX, phone)
	switch {
	case err == nil && existing.StaleAt(now, u.policy.PendingTimeout):
		if _, err := u.reclaim(ctx, existing, now); err != nil {
			return nil, err
		}
	case err == nil:
		return nil, domain.ErrRequestInFlight
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	id := uuid.NewString()
	pctx, cancel := context.WithTimeout(ctx, u.policy.ProviderTimeout)
	defer cancel()
	start := time.Now()
	charge, err := u.gateway.RequestCharge(pctx, adapter.ChargeRequest{
		Phone:       phone,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Reference:   u.policy.Reference,
		Description: plan.Name,
	})
	metrics.ObserveProviderRequest(u.gateway.Name(), time.Since(start), err == nil)
	if err != nil {
		u.log.Warn().Err(err).Str("phone", phone).Str("plan_id", plan.ID).Msg("charge request failed")
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	p := &model.PaymentRequest{
		ID:                id,
		CorrelationID:     charge.CorrelationID,
		MerchantRequestID: charge.MerchantRequestID,
		Provider:          u.gateway.Name(),
		Phone:             phone,
		PlanID:            plan.ID,
		Amount:            plan.Price,
		Currency:          plan.Currency,
		Status:            model.PaymentStatusPending,
		CreatedAt:         now.UTC(),
	}
	if in.Device != nil && !in.Device.IsZero() {
		p.DeviceMAC, p.DeviceIP = in.Device.MAC, in.Device.IP
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrRequestInFlight
		}
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("correlation_id", p.CorrelationID).
		Str("plan_id", p.PlanID).
		Int64("amount", p.Amount).
		Msg("payment initiated")
	return p, nil
}

func (u *paymentUC) OnCallback(ctx context.Context, correlationID string, res model.CallbackResult, now time.Time) (*model.PaymentRequest, error) {
	if res.Outcome != model.PaymentStatusCompleted && res.Outcome != model.PaymentStatusFailed {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.payments.FindByCorrelationID(ctx, repository.NoTX, correlationID)
	if err != nil {
		return nil, err
	}
	if res.Outcome == model.PaymentStatusCompleted {
		if err := u.checkCallback(p, res); err != nil {
			return nil, err
		}
		if p.Status == model.PaymentStatusPending && !p.StaleAt(now, u.policy.PendingTimeout) {
			if err := u.confirmCharge(ctx, p); err != nil {
				return nil, err
			}
		}
	}

	device, hasDevice := p.Device()
	keys := make([]string, 0, 2)
	if hasDevice && res.Outcome == model.PaymentStatusCompleted {
		keys = append(keys, deviceKey(device.MAC))
	}
	keys = append(keys, paymentKey(correlationID))

	var (
		out       *model.PaymentRequest
		granted   *model.Session
		resolved  bool
		reclaimed bool
	)
	err = withKeys(ctx, u.locker, u.locks, keys, func() error {
		return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			cur, err := u.payments.FindByCorrelationID(ctx, tx, correlationID)
			if err != nil {
				return err
			}
			out = cur
			if cur.Status != model.PaymentStatusPending {
				return nil
			}
			if cur.StaleAt(now, u.policy.PendingTimeout) {
				// Past the timeout the request is closed whether or not anyone polled it.
				ok, err := u.payments.ResolveIfPending(ctx, tx, correlationID, model.PaymentStatusFailed, model.PaymentResolution{
					ResolvedAt: now.UTC(),
					ResultDesc: reclaimedDesc,
				})
				if err != nil || !ok {
					return err
				}
				reclaimed = true
				at := now.UTC()
				cur.Status, cur.ResolvedAt, cur.ResultDesc = model.PaymentStatusFailed, &at, reclaimedDesc
				return nil
			}
			ok, err := u.payments.ResolveIfPending(ctx, tx, correlationID, res.Outcome, res.Resolution(now.UTC()))
			if err != nil || !ok {
				return err
			}
			resolved = true
			r := res.Resolution(now.UTC())
			cur.Status, cur.ResolvedAt, cur.Receipt, cur.ResultCode, cur.ResultDesc = res.Outcome, &r.ResolvedAt, r.Receipt, r.ResultCode, r.ResultDesc

			if res.Outcome != model.PaymentStatusCompleted || !hasDevice {
				return nil
			}
			plan, err := u.plans.FindByID(ctx, tx, cur.PlanID)
			if err != nil {
				return err
			}
			s, err := u.sessions.CreateFromPayment(ctx, tx, cur, plan, device, now)
			if errors.Is(err, domain.ErrDeviceAlreadyActive) {
				// Funds are kept; the payment stays claimable.
				u.log.Info().Str("correlation_id", correlationID).Str("mac", device.MAC).Msg("device busy, payment left unclaimed")
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := u.payments.LinkSession(ctx, tx, correlationID, s.ID); err != nil {
				return err
			}
			cur.SessionID = &s.ID
			granted = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if reclaimed {
		metrics.IncPayment("reclaimed")
		u.log.Info().Str("correlation_id", correlationID).Str("phone", out.Phone).Msg("stale payment reclaimed on callback")
	}
	if !resolved {
		u.ignoredCallback(ctx, out, res)
		return out, nil
	}

	metrics.IncPayment(string(out.Status))
	if out.Status == model.PaymentStatusCompleted {
		metrics.AddPaymentRevenue(out.Currency, out.Amount)
	}
	u.log.Info().
		Str("correlation_id", correlationID).
		Str("status", string(out.Status)).
		Str("receipt", out.Receipt).
		Int("result_code", res.ResultCode).
		Msg("payment resolved")
	u.sessions.Announce(ctx, granted)
	return out, nil
}

// checkCallback rejects a completion whose metadata disagrees with the stored request.
func (u *paymentUC) checkCallback(p *model.PaymentRequest, res model.CallbackResult) error {
	reason := ""
	switch {
	case res.Amount < p.Amount:
		reason = "amount"
	case res.Phone != "":
		if phone, err := model.NormalizePhone(res.Phone); err != nil || phone != p.Phone {
			reason = "phone"
		}
	}
	if reason == "" {
		return nil
	}
	metrics.IncCallbackRejected(reason)
	u.log.Warn().
		Str("correlation_id", p.CorrelationID).
		Str("reason", reason).
		Int64("expected_amount", p.Amount).
		Int64("reported_amount", res.Amount).
		Msg("completion callback rejected")
	return fmt.Errorf("%w: %s mismatch", domain.ErrCallbackRejected, reason)
}

// confirmCharge asks the provider whether the charge was really paid before
// a completion is credited.
func (u *paymentUC) confirmCharge(ctx context.Context, p *model.PaymentRequest) error {
	pctx, cancel := context.WithTimeout(ctx, u.policy.ProviderTimeout)
	defer cancel()
	st, err := u.gateway.VerifyCharge(pctx, p.CorrelationID)
	if err != nil {
		u.log.Warn().Err(err).Str("correlation_id", p.CorrelationID).Msg("charge verification failed")
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return err
		}
		return fmt.Errorf("%w: verify: %v", domain.ErrProviderUnavailable, err)
	}
	switch {
	case st.Paid:
		return nil
	case st.Pending:
		// Retryable: the request stays pending until the provider settles or it times out.
		return fmt.Errorf("%w: charge not settled yet", domain.ErrProviderUnavailable)
	default:
		metrics.IncCallbackRejected("unpaid")
		u.log.Warn().
			Str("correlation_id", p.CorrelationID).
			Int("provider_code", st.ResultCode).
			Str("provider_desc", st.ResultDesc).
			Msg("completion callback contradicts provider")
		return fmt.Errorf("%w: provider reports %d %s", domain.ErrCallbackRejected, st.ResultCode, st.ResultDesc)
	}
}

// ignoredCallback handles duplicates and callbacks that arrive after reclamation.
func (u *paymentUC) ignoredCallback(ctx context.Context, p *model.PaymentRequest, res model.CallbackResult) {
	if p.Status == res.Outcome {
		u.log.Debug().Str("correlation_id", p.CorrelationID).Msg("duplicate callback ignored")
		return
	}
	metrics.IncLateCallback(string(res.Outcome))
	u.log.Warn().
		Str("correlation_id", p.CorrelationID).
		Str("stored", string(p.Status)).
		Str("callback", string(res.Outcome)).
		Str("receipt", res.Receipt).
		Msg("late callback ignored")
	if res.Outcome != model.PaymentStatusCompleted {
		return
	}
	msg := fmt.Sprintf("Late payment: %s paid %d %s (receipt %s) after request %s was closed as %s. Manual follow-up needed.",
		p.Phone, p.Amount, p.Currency, res.Receipt, p.CorrelationID, p.Status)
	if err := u.notifier.Notify(ctx, msg); err != nil {
		u.log.Error().Err(err).Str("correlation_id", p.CorrelationID).Msg("notify operator")
	}
}

func (u *paymentUC) Status(ctx context.Context, correlationID string, now time.Time) (*model.PaymentRequest, error) {
	p, err := u.payments.FindByCorrelationID(ctx, repository.NoTX, correlationID)
	if err != nil {
		return nil, err
	}
	if !p.StaleAt(now, u.policy.PendingTimeout) {
		return p, nil
	}
	if _, err := u.reclaim(ctx, p, now); err != nil {
		return nil, err
	}
	// Re-read: a callback may have won the race.
	return u.payments.FindByCorrelationID(ctx, repository.NoTX, correlationID)
}

func (u *paymentUC) reclaim(ctx context.Context, p *model.PaymentRequest, now time.Time) (bool, error) {
	ok, err := u.payments.ResolveIfPending(ctx, repository.NoTX, p.CorrelationID, model.PaymentStatusFailed, model.PaymentResolution{
		ResolvedAt: now.UTC(),
		ResultDesc: reclaimedDesc,
	})
	if err != nil {
		return false, err
	}
	if ok {
		metrics.IncPayment("reclaimed")
		u.log.Info().Str("correlation_id", p.CorrelationID).Str("phone", p.Phone).Msg("stale payment reclaimed")
	}
	return ok, nil
}

func (u *paymentUC) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, now.Add(-u.policy.PendingTimeout), u.policy.ReclaimBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		ok, err := u.reclaim(ctx, p, now)
		if err != nil {
			u.log.Error().Err(err).Str("correlation_id", p.CorrelationID).Msg("reclaim failed")
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (u *paymentUC) Claim(ctx context.Context, correlationID string, device model.Device, now time.Time) (*model.Session, error) {
	if device.IsZero() {
		return nil, domain.ErrInvalidDevice
	}
	var granted *model.Session
	keys := []string{deviceKey(device.MAC), paymentKey(correlationID)}
	err := withKeys(ctx, u.locker, u.locks, keys, func() error {
		return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			p, err := u.payments.FindByCorrelationID(ctx, tx, correlationID)
			if err != nil {
				return err
			}
			if p.Status != model.PaymentStatusCompleted {
				return domain.ErrPaymentNotCompleted
			}
			if p.Claimed() {
				return domain.ErrPaymentClaimed
			}
			plan, err := u.plans.FindByID(ctx, tx, p.PlanID)
			if err != nil {
				return err
			}
			s, err := u.sessions.CreateFromPayment(ctx, tx, p, plan, device, now)
			if err != nil {
				return err
			}
			ok, err := u.payments.LinkSession(ctx, tx, correlationID, s.ID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrPaymentClaimed
			}
			granted = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("correlation_id", correlationID).Str("mac", device.MAC).Msg("payment claimed")
	u.sessions.Announce(ctx, granted)
	return granted, nil
}
