package repository

import (
	"context"
	"time"

	"bytebill/internal/domain/model"
)

type SessionRepository interface {
	// Create inserts an active session; a second active session for the same MAC
	// is rejected with domain.ErrDeviceAlreadyActive.
	Create(ctx context.Context, tx Tx, s *model.Session) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Session, error)
	FindActiveByMAC(ctx context.Context, tx Tx, mac string) (*model.Session, error)
	// AddExtension appends to the log and bumps the deadline of an active session.
	AddExtension(ctx context.Context, tx Tx, e *model.Extension) (bool, error)
	ListExtensions(ctx context.Context, tx Tx, sessionID string) ([]model.Extension, error)
	// End moves an active session to a terminal status exactly once.
	End(ctx context.Context, tx Tx, id string, status model.SessionStatus, reason string, at time.Time) (bool, error)
	// AddUsage adds byte deltas and merges elapsed/last-activity with max.
	AddUsage(ctx context.Context, tx Tx, id string, u model.Usage) error
	// ListActive pages active sessions by id, starting after afterID.
	ListActive(ctx context.Context, tx Tx, afterID string, limit int) ([]*model.Session, error)
	List(ctx context.Context, tx Tx, f model.SessionFilter) ([]*model.Session, error)
	Stats(ctx context.Context, tx Tx, dayStart time.Time) (model.SessionStats, error)
	// StartBuckets groups sessions started at or after from into UTC buckets of
	// width step (an hour or a day). Empty buckets are omitted.
	StartBuckets(ctx context.Context, tx Tx, from time.Time, step time.Duration) ([]model.Bucket, error)
}
