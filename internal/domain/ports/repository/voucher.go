package repository

import (
	"context"
	"time"

	"bytebill/internal/domain/model"
)

type VoucherRepository interface {
	// Insert returns domain.ErrAlreadyExists when the code collides.
	Insert(ctx context.Context, tx Tx, v *model.Voucher) error
	// Exists checks every stored code regardless of status.
	Exists(ctx context.Context, tx Tx, code string) (bool, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Voucher, error)
	// MarkUsed flips unused -> used; false when the voucher was not unused.
	MarkUsed(ctx context.Context, tx Tx, code, mac, sessionID string, at time.Time) (bool, error)
	// ListPage returns up to limit vouchers ordered by (created_at, code) after the cursor.
	ListPage(ctx context.Context, tx Tx, f model.VoucherFilter, after *model.VoucherCursor, limit int) ([]*model.Voucher, error)
	Counts(ctx context.Context, tx Tx, now time.Time) (model.VoucherCounts, error)
}
