package repository

import (
	"context"
	"time"

	"bytebill/internal/domain/model"
)

// -----------------------------
// Payment requests
// -----------------------------

type PaymentRepository interface {
	// Save inserts a new pending request. A second pending row for the same phone
	// is rejected with domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, p *model.PaymentRequest) error
	FindByCorrelationID(ctx context.Context, tx Tx, correlationID string) (*model.PaymentRequest, error)
	FindPendingByPhone(ctx context.Context, tx Tx, phone string) (*model.PaymentRequest, error)
	// ResolveIfPending atomically moves a pending request to a terminal status.
	ResolveIfPending(ctx context.Context, tx Tx, correlationID string, status model.PaymentStatus, res model.PaymentResolution) (bool, error)
	// LinkSession records the funded session on a completed, unclaimed request.
	LinkSession(ctx context.Context, tx Tx, correlationID, sessionID string) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentRequest, error)
	// SumCompleted totals completed amounts resolved at or after since (zero time = all).
	SumCompleted(ctx context.Context, tx Tx, since time.Time) (int64, error)
	// RevenueBuckets groups completed requests resolved at or after from into
	// UTC buckets of width step (an hour or a day). Empty buckets are omitted.
	RevenueBuckets(ctx context.Context, tx Tx, from time.Time, step time.Duration) ([]model.Bucket, error)
}
