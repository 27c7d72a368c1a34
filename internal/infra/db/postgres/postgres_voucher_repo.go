package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.VoucherRepository = (*voucherRepo)(nil)

type voucherRepo struct{ pool *pgxpool.Pool }

func NewVoucherRepo(pool *pgxpool.Pool) *voucherRepo {
	return &voucherRepo{pool: pool}
}

const voucherColumns = `code, plan_id::text, status, created_at, expires_at, redeemed_by, redeemed_at, session_id, batch_id::text, created_by, notes`

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	if err := row.Scan(&v.Code, &v.PlanID, &v.Status, &v.CreatedAt, &v.ExpiresAt, &v.RedeemedBy, &v.RedeemedAt, &v.SessionID, &v.BatchID, &v.CreatedBy, &v.Notes); err != nil {
		return nil, scanErr(err)
	}
	return &v, nil
}

func (r *voucherRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	const q = `
INSERT INTO vouchers (code, plan_id, status, created_at, expires_at, batch_id, created_by, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q, v.Code, v.PlanID, v.Status, v.CreatedAt, v.ExpiresAt, v.BatchID, v.CreatedBy, v.Notes)
	if _, dup := uniqueViolation(err); dup {
		return domain.ErrAlreadyExists
	}
	return opErr(err)
}

func (r *voucherRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM vouchers WHERE code=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func (r *voucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	q := forUpdate(`SELECT `+voucherColumns+` FROM vouchers WHERE code=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanVoucher(row)
}

func (r *voucherRepo) MarkUsed(ctx context.Context, tx repository.Tx, code, mac, sessionID string, at time.Time) (bool, error) {
	const q = `
UPDATE vouchers
   SET status='used', redeemed_by=$2, redeemed_at=$3, session_id=$4
 WHERE code=$1 AND status='unused';`
	tag, err := execSQL(ctx, r.pool, tx, q, code, mac, at, sessionID)
	if err != nil {
		return false, opErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

// ListPage filters on the derived status, so "unused" excludes vouchers past expiry.
func (r *voucherRepo) ListPage(ctx context.Context, tx repository.Tx, f model.VoucherFilter, after *model.VoucherCursor, limit int) ([]*model.Voucher, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PlanID != "" {
		where = append(where, "plan_id::text="+arg(f.PlanID))
	}
	if f.BatchID != "" {
		where = append(where, "batch_id::text="+arg(f.BatchID))
	}
	switch f.Status {
	case "":
	case model.VoucherStatusUsed:
		where = append(where, "status='used'")
	case model.VoucherStatusUnused:
		where = append(where, "status='unused' AND expires_at>="+arg(f.Now))
	case model.VoucherStatusExpired:
		where = append(where, "status='unused' AND expires_at<"+arg(f.Now))
	default:
		return nil, domain.ErrInvalidArgument
	}
	if after != nil {
		where = append(where, fmt.Sprintf("(created_at, code) > (%s, %s)", arg(after.CreatedAt), arg(after.Code)))
	}

	q := `SELECT ` + voucherColumns + ` FROM vouchers`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, code LIMIT " + arg(limit) + ";"

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	out := make([]*model.Voucher, 0, limit)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, opErr(rows.Err())
}

func (r *voucherRepo) Counts(ctx context.Context, tx repository.Tx, now time.Time) (model.VoucherCounts, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status='unused' AND expires_at>=$1),
       COUNT(*) FILTER (WHERE status='used'),
       COUNT(*) FILTER (WHERE status='unused' AND expires_at<$1)
  FROM vouchers;`
	var c model.VoucherCounts
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return c, err
	}
	if err := row.Scan(&c.Total, &c.Unused, &c.Used, &c.Expired); err != nil {
		return c, scanErr(err)
	}
	return c, nil
}
