package usecase

import (
	"context"
	"time"

	"bytebill/internal/domain/model"
)

// QuotaSweeper is what the background enforcer needs from the quota use case.
type QuotaSweeper interface {
	Sweep(ctx context.Context, now time.Time) (model.SweepResult, error)
}

// StaleReclaimer is what the background reclaimer needs from the payment use case.
type StaleReclaimer interface {
	ReclaimStale(ctx context.Context, now time.Time) (int, error)
}
