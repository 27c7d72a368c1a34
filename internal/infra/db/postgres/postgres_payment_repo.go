package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id::text, correlation_id, merchant_request_id, provider, phone, plan_id::text, amount, currency, status, created_at, resolved_at, device_mac, device_ip, receipt, result_code, result_desc, session_id`

func scanPayment(row pgx.Row) (*model.PaymentRequest, error) {
	p := &model.PaymentRequest{}
	if err := row.Scan(&p.ID, &p.CorrelationID, &p.MerchantRequestID, &p.Provider, &p.Phone, &p.PlanID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt, &p.ResolvedAt, &p.DeviceMAC, &p.DeviceIP, &p.Receipt, &p.ResultCode, &p.ResultDesc, &p.SessionID); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

// Save maps both unique constraints (correlation id, pending phone) to ErrAlreadyExists.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	const q = `
INSERT INTO payment_requests (
  id, correlation_id, merchant_request_id, provider, phone, plan_id, amount, currency, status, created_at, device_mac, device_ip
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.CorrelationID, p.MerchantRequestID, p.Provider, p.Phone, p.PlanID, p.Amount, p.Currency, p.Status, p.CreatedAt, p.DeviceMAC, p.DeviceIP)
	if _, dup := uniqueViolation(err); dup {
		return domain.ErrAlreadyExists
	}
	return opErr(err)
}

func (r *paymentRepo) FindByCorrelationID(ctx context.Context, tx repository.Tx, correlationID string) (*model.PaymentRequest, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payment_requests WHERE correlation_id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, correlationID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindPendingByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.PaymentRequest, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payment_requests WHERE phone=$1 AND status='pending'`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, phone)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ResolveIfPending(ctx context.Context, tx repository.Tx, correlationID string, status model.PaymentStatus, res model.PaymentResolution) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payment_requests
   SET status=$2, resolved_at=$3, receipt=$4, result_code=$5, result_desc=$6
 WHERE correlation_id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, correlationID, status, res.ResolvedAt, res.Receipt, res.ResultCode, res.ResultDesc)
	if err != nil {
		return false, opErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *paymentRepo) LinkSession(ctx context.Context, tx repository.Tx, correlationID, sessionID string) (bool, error) {
	const q = `
UPDATE payment_requests
   SET session_id=$2
 WHERE correlation_id=$1 AND status='completed' AND session_id IS NULL;`
	tag, err := execSQL(ctx, r.pool, tx, q, correlationID, sessionID)
	if err != nil {
		return false, opErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRequest, error) {
	const q = `
SELECT ` + paymentColumns + `
  FROM payment_requests
 WHERE status='pending' AND created_at < $1
 ORDER BY created_at
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, opErr(rows.Err())
}

func (r *paymentRepo) SumCompleted(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0)::bigint FROM payment_requests WHERE status='completed' AND resolved_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, scanErr(err)
	}
	return total, nil
}

func (r *paymentRepo) RevenueBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	const q = `
SELECT date_trunc($2, resolved_at AT TIME ZONE 'UTC') AS bucket,
       COUNT(*),
       COALESCE(SUM(amount), 0)::bigint,
       0::bigint,
       0::bigint
  FROM payment_requests
 WHERE status = 'completed' AND resolved_at >= $1
 GROUP BY bucket
 ORDER BY bucket;`
	return queryBuckets(ctx, r.pool, tx, q, from, step)
}
