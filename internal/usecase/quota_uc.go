// File: internal/usecase/quota_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
	ucport "bytebill/internal/domain/ports/usecase"
	"bytebill/internal/infra/metrics"
)

// Compile-time check
var (
	_ QuotaUseCase        = (*quotaUC)(nil)
	_ ucport.QuotaSweeper = (*quotaUC)(nil)
)

type QuotaUseCase interface {
	// Sweep ends every active session whose time or data is exhausted at now.
	Sweep(ctx context.Context, now time.Time) (model.SweepResult, error)
	Remaining(ctx context.Context, sessionID string, now time.Time) (model.Quota, error)
}

type quotaUC struct {
	sessionsRepo repository.SessionRepository
	sessions     SessionUseCase
	pageSize     int
	log          *zerolog.Logger
}

func NewQuotaUseCase(sessionsRepo repository.SessionRepository, sessions SessionUseCase, pageSize int, logger *zerolog.Logger) *quotaUC {
	if pageSize <= 0 {
		pageSize = 500
	}
	l := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUC{sessionsRepo: sessionsRepo, sessions: sessions, pageSize: pageSize, log: &l}
}

func (u *quotaUC) Sweep(ctx context.Context, now time.Time) (model.SweepResult, error) {
	var res model.SweepResult
	after := ""
	for {
		page, err := u.sessionsRepo.ListActive(ctx, repository.NoTX, after, u.pageSize)
		if err != nil {
			return res, err
		}
		for _, s := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Checked++
			q := s.QuotaAt(now)
			if !q.Exhausted {
				continue
			}
			ended, err := u.sessions.Expire(ctx, s, q.Reason, now)
			if err != nil {
				res.Failed++
				u.log.Error().Err(err).Str("session_id", s.ID).Msg("expire session")
				continue
			}
			if ended {
				res.Expired++
			}
		}
		if len(page) < u.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	metrics.SetSessionsActive(res.Checked - res.Expired)
	if res.Expired > 0 || res.Failed > 0 {
		u.log.Info().
			Int("checked", res.Checked).
			Int("expired", res.Expired).
			Int("failed", res.Failed).
			Msg("quota sweep")
	}
	return res, nil
}

func (u *quotaUC) Remaining(ctx context.Context, sessionID string, now time.Time) (model.Quota, error) {
	s, err := u.sessionsRepo.FindByID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return model.Quota{}, err
	}
	return s.QuotaAt(now), nil
}
