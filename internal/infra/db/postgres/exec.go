package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

const pgUniqueViolation = "23505"

func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, sql, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, sql, args...)
}

// inTx runs fn on the caller's transaction, or on a fresh one when tx is not a pgx.Tx.
func inTx(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, fn func(pgx.Tx) error) error {
	if t, ok := tx.(pgx.Tx); ok {
		return fn(t)
	}
	t, err := pool.Begin(ctx)
	if err != nil {
		return opErr(err)
	}
	defer func() { _ = t.Rollback(ctx) }()
	if err := fn(t); err != nil {
		return err
	}
	return opErr(t.Commit(ctx))
}

// forUpdate appends a row lock when the read runs inside a transaction.
func forUpdate(q string, tx repository.Tx) string {
	if _, ok := tx.(pgx.Tx); ok {
		return q + " FOR UPDATE"
	}
	return q
}

// uniqueViolation reports the violated constraint of a 23505 error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// opErr maps driver errors onto domain sentinels, keeping the cause for logs.
func opErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
}

// scanErr maps a row scan failure.
func scanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
}

// truncUnit names the date_trunc field for a bucket width.
func truncUnit(step time.Duration) (string, error) {
	switch step {
	case time.Hour:
		return "hour", nil
	case 24 * time.Hour:
		return "day", nil
	}
	return "", fmt.Errorf("%w: bucket width %s", domain.ErrInvalidArgument, step)
}

// queryBuckets runs a grouped aggregate whose rows are (bucket, count, amount, bytes_in, bytes_out).
func queryBuckets(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, from time.Time, step time.Duration) ([]model.Bucket, error) {
	unit, err := truncUnit(step)
	if err != nil {
		return nil, err
	}
	rows, err := queryRows(ctx, pool, tx, sql, from, unit)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []model.Bucket
	for rows.Next() {
		var b model.Bucket
		if err := rows.Scan(&b.Start, &b.Count, &b.Amount, &b.BytesIn, &b.BytesOut); err != nil {
			return nil, scanErr(err)
		}
		b.Start = b.Start.UTC()
		out = append(out, b)
	}
	return out, opErr(rows.Err())
}
