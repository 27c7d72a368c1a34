package repository

import (
	"context"

	"bytebill/internal/domain/model"
)

type PlanRepository interface {
	// Save inserts a plan; plans are immutable so there is no update path.
	Save(ctx context.Context, tx Tx, p *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindByName(ctx context.Context, tx Tx, name string) (*model.Plan, error)
	List(ctx context.Context, tx Tx, activeOnly bool) ([]*model.Plan, error)
	Deactivate(ctx context.Context, tx Tx, id string) error
}
