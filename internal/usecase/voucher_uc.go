// File: internal/usecase/voucher_uc.go
package usecase

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
	"bytebill/internal/infra/metrics"
)

// Compile-time check
var _ VoucherUseCase = (*voucherUC)(nil)

type GenerateVouchersInput struct {
	PlanID        string
	Count         int
	ExpiresInDays int
	CreatedBy     string
	Notes         string
}

// VoucherPolicy carries the operator limits for batches, listing and redemption.
type VoucherPolicy struct {
	MaxBatch       int
	MaxExpiryDays  int
	PageSize       int
	RedeemAttempts int
	RedeemWindow   time.Duration
}

func (p VoucherPolicy) normalized() VoucherPolicy {
	if p.MaxBatch <= 0 {
		p.MaxBatch = 1000
	}
	if p.MaxExpiryDays <= 0 {
		p.MaxExpiryDays = 365
	}
	if p.PageSize <= 0 {
		p.PageSize = 200
	}
	if p.RedeemAttempts <= 0 {
		p.RedeemAttempts = 10
	}
	if p.RedeemWindow <= 0 {
		p.RedeemWindow = time.Minute
	}
	return p
}

type VoucherUseCase interface {
	Generate(ctx context.Context, in GenerateVouchersInput, now time.Time) ([]*model.Voucher, error)
	// Redeem consumes an unused voucher and starts a session for device.
	Redeem(ctx context.Context, code string, device model.Device, now time.Time) (*model.Session, error)
	// List streams vouchers in creation order, fetching one page at a time.
	List(ctx context.Context, f model.VoucherFilter) iter.Seq2[*model.Voucher, error]
	Get(ctx context.Context, code string) (*model.Voucher, error)
	Stats(ctx context.Context, now time.Time) (model.VoucherCounts, error)
}

type voucherUC struct {
	vouchers repository.VoucherRepository
	plans    repository.PlanRepository
	sessions SessionUseCase
	tm       repository.TransactionManager
	locker   adapter.Locker
	limiter  adapter.RateLimiter
	policy   VoucherPolicy
	locks    LockPolicy
	log      *zerolog.Logger
}

func NewVoucherUseCase(
	vouchers repository.VoucherRepository,
	plans repository.PlanRepository,
	sessions SessionUseCase,
	tm repository.TransactionManager,
	locker adapter.Locker,
	limiter adapter.RateLimiter,
	policy VoucherPolicy,
	locks LockPolicy,
	logger *zerolog.Logger,
) *voucherUC {
	l := logger.With().Str("component", "VoucherUC").Logger()
	return &voucherUC{
		vouchers: vouchers,
		plans:    plans,
		sessions: sessions,
		tm:       tm,
		locker:   locker,
		limiter:  limiter,
		policy:   policy.normalized(),
		locks:    locks.normalized(),
		log:      &l,
	}
}

func (u *voucherUC) Generate(ctx context.Context, in GenerateVouchersInput, now time.Time) ([]*model.Voucher, error) {
	if in.Count < 1 || in.Count > u.policy.MaxBatch {
		return nil, domain.ErrInvalidRange
	}
	if in.ExpiresInDays < 1 || in.ExpiresInDays > u.policy.MaxExpiryDays {
		return nil, domain.ErrInvalidRange
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, in.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidPlan
		}
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrInvalidPlan
	}

	now = now.UTC()
	batchID := uuid.NewString()
	expiresAt := now.Add(time.Duration(in.ExpiresInDays) * 24 * time.Hour)
	// Bounded retries on code collision.
	maxCollisions := in.Count + 16

	var out []*model.Voucher
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		out = make([]*model.Voucher, 0, in.Count)
		collisions := 0
		for len(out) < in.Count {
			code, err := generateVoucherCode()
			if err != nil {
				return err
			}
			exists, err := u.vouchers.Exists(ctx, tx, code)
			if err != nil {
				return err
			}
			if exists {
				collisions++
				if collisions > maxCollisions {
					return domain.ErrOperationFailed
				}
				continue
			}
			v := &model.Voucher{
				Code:      code,
				PlanID:    plan.ID,
				Status:    model.VoucherStatusUnused,
				CreatedAt: now,
				ExpiresAt: expiresAt,
				BatchID:   batchID,
				CreatedBy: in.CreatedBy,
				Notes:     in.Notes,
			}
			if err := u.vouchers.Insert(ctx, tx, v); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddVouchersGenerated(len(out))
	u.log.Info().
		Str("batch_id", batchID).
		Str("plan_id", plan.ID).
		Int("count", len(out)).
		Str("created_by", in.CreatedBy).
		Msg("voucher batch generated")
	return out, nil
}

func (u *voucherUC) Redeem(ctx context.Context, raw string, device model.Device, now time.Time) (*model.Session, error) {
	code, err := model.NormalizeVoucherCode(raw)
	if err != nil {
		metrics.IncVoucherRedemption("malformed")
		return nil, err
	}
	if device.IsZero() {
		return nil, domain.ErrInvalidDevice
	}

	// Only rejected codes count against the device; see failedAttempt.
	limitKey := "redeem:" + device.MAC
	blocked, err := u.limiter.Exceeded(ctx, limitKey, u.policy.RedeemAttempts, u.policy.RedeemWindow)
	if err != nil {
		// fail open
		u.log.Warn().Err(err).Str("mac", device.MAC).Msg("redeem rate limiter unavailable")
	} else if blocked {
		metrics.IncVoucherRedemption("rate_limited")
		return nil, domain.ErrTooManyAttempts
	}

	var sess *model.Session
	err = withKeys(ctx, u.locker, u.locks, []string{deviceKey(device.MAC), voucherKey(code)}, func() error {
		return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			v, err := u.vouchers.FindByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			if v.ExpiredAt(now) {
				return domain.ErrExpired
			}
			if v.Status != model.VoucherStatusUnused {
				return domain.ErrAlreadyUsed
			}
			plan, err := u.plans.FindByID(ctx, tx, v.PlanID)
			if err != nil {
				return err
			}
			s, err := u.sessions.CreateFromVoucher(ctx, tx, v, plan, device, now)
			if err != nil {
				return err
			}
			ok, err := u.vouchers.MarkUsed(ctx, tx, code, device.MAC, s.ID, now.UTC())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrAlreadyUsed
			}
			sess = s
			return nil
		})
	})
	if err != nil {
		metrics.IncVoucherRedemption(redeemOutcome(err))
		u.log.Info().Err(err).Str("code", model.FormatVoucherCode(code)).Str("mac", device.MAC).Msg("voucher redemption rejected")
		if failedAttempt(err) {
			if _, lerr := u.limiter.Allow(ctx, limitKey, u.policy.RedeemAttempts, u.policy.RedeemWindow); lerr != nil {
				u.log.Warn().Err(lerr).Str("mac", device.MAC).Msg("redeem rate limiter unavailable")
			}
		}
		return nil, err
	}

	metrics.IncVoucherRedemption("ok")
	u.sessions.Announce(ctx, sess)
	return sess, nil
}

// failedAttempt reports rejections a code-guessing client would see.
func failedAttempt(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) || errors.Is(err, domain.ErrAlreadyUsed)
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrDeviceAlreadyActive):
		return "device_active"
	case errors.Is(err, domain.ErrLockNotAcquired):
		return "busy"
	default:
		return "error"
	}
}

func (u *voucherUC) List(ctx context.Context, f model.VoucherFilter) iter.Seq2[*model.Voucher, error] {
	if f.Now.IsZero() {
		f.Now = time.Now()
	}
	pageSize := u.policy.PageSize
	return func(yield func(*model.Voucher, error) bool) {
		var after *model.VoucherCursor
		for {
			page, err := u.vouchers.ListPage(ctx, repository.NoTX, f, after, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, v := range page {
				if !yield(v, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			after = &model.VoucherCursor{CreatedAt: last.CreatedAt, Code: last.Code}
		}
	}
}

func (u *voucherUC) Get(ctx context.Context, raw string) (*model.Voucher, error) {
	code, err := model.NormalizeVoucherCode(raw)
	if err != nil {
		return nil, err
	}
	return u.vouchers.FindByCode(ctx, repository.NoTX, code)
}

func (u *voucherUC) Stats(ctx context.Context, now time.Time) (model.VoucherCounts, error) {
	return u.vouchers.Counts(ctx, repository.NoTX, now)
}
