package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, kind, duration_seconds, data_cap_bytes, price, currency, description, active, created_at`

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.DurationSeconds, &p.DataCapBytes, &p.Price, &p.Currency, &p.Description, &p.Active, &p.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (` + planColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Kind, p.DurationSeconds, p.DataCapBytes, p.Price, p.Currency, p.Description, p.Active, p.CreatedAt)
	if _, dup := uniqueViolation(err); dup {
		return domain.ErrAlreadyExists
	}
	return opErr(err)
}

// FindByID never locks: plans are immutable apart from the active flag.
func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id::text=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	return p, err
}

func (r *planRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE name=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, name)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	return p, err
}

func (r *planRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	const q = `
SELECT ` + planColumns + `
  FROM plans
 WHERE active OR NOT $1
 ORDER BY price, name;`
	rows, err := queryRows(ctx, r.pool, tx, q, activeOnly)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, opErr(rows.Err())
}

func (r *planRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE plans SET active=false WHERE id::text=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return opErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlanNotFound
	}
	return nil
}
