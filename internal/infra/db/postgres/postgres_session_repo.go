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

var _ repository.SessionRepository = (*sessionRepo)(nil)

type sessionRepo struct{ pool *pgxpool.Pool }

func NewSessionRepo(pool *pgxpool.Pool) *sessionRepo {
	return &sessionRepo{pool: pool}
}

const sessionColumns = `id, mac, ip, plan_id::text, origin, origin_ref, duration_seconds, data_cap_bytes, amount_paid, started_at, status, elapsed_seconds, bytes_in, bytes_out, last_activity, extension_seconds, ended_at, end_reason`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	if err := row.Scan(&s.ID, &s.MAC, &s.IP, &s.PlanID, &s.Origin, &s.OriginRef, &s.DurationSeconds, &s.DataCapBytes, &s.AmountPaid, &s.StartedAt, &s.Status, &s.ElapsedSeconds, &s.BytesIn, &s.BytesOut, &s.LastActivity, &s.ExtensionSeconds, &s.EndedAt, &s.EndReason); err != nil {
		return nil, scanErr(err)
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]*model.Session, error) {
	defer rows.Close()
	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, opErr(rows.Err())
}

// Create relies on uq_sessions_active_mac for the one-active-session-per-device rule.
func (r *sessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Session) error {
	const q = `
INSERT INTO sessions (
  id, mac, ip, plan_id, origin, origin_ref, duration_seconds, data_cap_bytes, amount_paid, started_at, status, last_activity
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
);`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.MAC, s.IP, s.PlanID, s.Origin, s.OriginRef, s.DurationSeconds, s.DataCapBytes, s.AmountPaid, s.StartedAt, s.Status, s.LastActivity)
	if c, dup := uniqueViolation(err); dup {
		if c == "uq_sessions_active_mac" {
			return domain.ErrDeviceAlreadyActive
		}
		return domain.ErrAlreadyExists
	}
	return opErr(err)
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	q := forUpdate(`SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

func (r *sessionRepo) FindActiveByMAC(ctx context.Context, tx repository.Tx, mac string) (*model.Session, error) {
	q := forUpdate(`SELECT `+sessionColumns+` FROM sessions WHERE mac=$1 AND status='active'`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, mac)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

// AddExtension bumps the deadline and logs the grant in one transaction.
func (r *sessionRepo) AddExtension(ctx context.Context, tx repository.Tx, e *model.Extension) (bool, error) {
	var ok bool
	err := inTx(ctx, r.pool, tx, func(t pgx.Tx) error {
		tag, err := t.Exec(ctx, `UPDATE sessions SET extension_seconds = extension_seconds + $2 WHERE id=$1 AND status='active';`, e.SessionID, e.Seconds)
		if err != nil {
			return opErr(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = t.Exec(ctx, `
INSERT INTO session_extensions (id, session_id, seconds, reason, granted_by, granted_at)
VALUES ($1,$2,$3,$4,$5,$6);`, e.ID, e.SessionID, e.Seconds, e.Reason, e.GrantedBy, e.GrantedAt)
		if err != nil {
			return opErr(err)
		}
		ok = true
		return nil
	})
	return ok, err
}

func (r *sessionRepo) ListExtensions(ctx context.Context, tx repository.Tx, sessionID string) ([]model.Extension, error) {
	const q = `
SELECT id, session_id, seconds, reason, granted_by, granted_at
  FROM session_extensions
 WHERE session_id=$1
 ORDER BY granted_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []model.Extension
	for rows.Next() {
		var e model.Extension
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seconds, &e.Reason, &e.GrantedBy, &e.GrantedAt); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, e)
	}
	return out, opErr(rows.Err())
}

func (r *sessionRepo) End(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus, reason string, at time.Time) (bool, error) {
	if status == model.SessionStatusActive {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE sessions
   SET status=$2, end_reason=$3, ended_at=$4
 WHERE id=$1 AND status='active';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, reason, at)
	if err != nil {
		return false, opErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

// AddUsage is commutative: byte counters add, elapsed and last activity keep the maximum.
func (r *sessionRepo) AddUsage(ctx context.Context, tx repository.Tx, id string, u model.Usage) error {
	const q = `
UPDATE sessions
   SET bytes_in        = bytes_in + $2,
       bytes_out       = bytes_out + $3,
       elapsed_seconds = GREATEST(elapsed_seconds, $4),
       last_activity   = GREATEST(last_activity, $5)
 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, u.BytesIn, u.BytesOut, u.ElapsedSeconds, u.At)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) ListActive(ctx context.Context, tx repository.Tx, afterID string, limit int) ([]*model.Session, error) {
	const q = `
SELECT ` + sessionColumns + `
  FROM sessions
 WHERE status='active' AND id > $1
 ORDER BY id
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, afterID, limit)
	if err != nil {
		return nil, opErr(err)
	}
	return collectSessions(rows)
}

func (r *sessionRepo) List(ctx context.Context, tx repository.Tx, f model.SessionFilter) ([]*model.Session, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status="+arg(f.Status))
	}
	if f.MAC != "" {
		where = append(where, "mac="+arg(f.MAC))
	}

	q := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := queryRows(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, opErr(err)
	}
	return collectSessions(rows)
}

func (r *sessionRepo) Stats(ctx context.Context, tx repository.Tx, dayStart time.Time) (model.SessionStats, error) {
	const q = `
SELECT COUNT(*) FILTER (WHERE status='active'),
       COUNT(*),
       COALESCE(SUM(bytes_in + bytes_out) FILTER (WHERE started_at >= $1), 0)::bigint,
       COALESCE(SUM(bytes_in + bytes_out), 0)::bigint,
       COUNT(DISTINCT mac) FILTER (WHERE started_at >= $1),
       COUNT(*) FILTER (WHERE started_at >= $1)
  FROM sessions;`
	var st model.SessionStats
	row, err := pickRow(ctx, r.pool, tx, q, dayStart)
	if err != nil {
		return st, err
	}
	if err := row.Scan(&st.Active, &st.Total, &st.DataToday, &st.DataTotal, &st.DevicesToday, &st.StartedToday); err != nil {
		return st, scanErr(err)
	}
	return st, nil
}

func (r *sessionRepo) StartBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	const q = `
SELECT date_trunc($2, started_at AT TIME ZONE 'UTC') AS bucket,
       COUNT(*),
       0::bigint,
       COALESCE(SUM(bytes_in), 0)::bigint,
       COALESCE(SUM(bytes_out), 0)::bigint
  FROM sessions
 WHERE started_at >= $1
 GROUP BY bucket
 ORDER BY bucket;`
	return queryBuckets(ctx, r.pool, tx, q, from, step)
}
