package usecase

import (
	"context"
	"errors"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

type CreatePlanInput struct {
	Name            string
	Kind            model.PlanKind
	DurationSeconds int64
	DataCapBytes    int64
	Price           int64
	Currency        string
	Description     string
}

// PlanUseCase manages the plan catalog.
type PlanUseCase interface {
	Create(ctx context.Context, in CreatePlanInput) (*model.Plan, error)
	Get(ctx context.Context, id string) (*model.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Plan, error)
	Deactivate(ctx context.Context, id string) error
	// Seed inserts plans whose names are not yet present and returns how many were added.
	Seed(ctx context.Context, plans []CreatePlanInput) (int, error)
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	l := logger.With().Str("component", "PlanUC").Logger()
	return &planUC{plans: plans, log: &l}
}

func (u *planUC) Create(ctx context.Context, in CreatePlanInput) (*model.Plan, error) {
	p, err := model.NewPlan(in.Name, in.Kind, in.DurationSeconds, in.DataCapBytes, in.Price, in.Currency, in.Description)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", p.ID).Str("name", p.Name).Msg("plan created")
	return p, nil
}

// Get maps a missing plan to ErrPlanNotFound.
func (u *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	p, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	return p, nil
}

func (u *planUC) List(ctx context.Context, activeOnly bool) ([]*model.Plan, error) {
	return u.plans.List(ctx, repository.NoTX, activeOnly)
}

func (u *planUC) Deactivate(ctx context.Context, id string) error {
	if _, err := u.Get(ctx, id); err != nil {
		return err
	}
	return u.plans.Deactivate(ctx, repository.NoTX, id)
}

func (u *planUC) Seed(ctx context.Context, plans []CreatePlanInput) (int, error) {
	added := 0
	for _, in := range plans {
		_, err := u.plans.FindByName(ctx, repository.NoTX, in.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return added, err
		}
		if _, err := u.Create(ctx, in); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// DefaultPlans is the stock hotspot catalog.
func DefaultPlans() []CreatePlanInput {
	const mb, gb = int64(1) << 20, int64(1) << 30
	return []CreatePlanInput{
		{Name: "1 Hour Basic", Kind: model.PlanKindHourly, DurationSeconds: 3600, DataCapBytes: 500 * mb, Price: 50, Description: "1 hour of internet access with 500MB data limit"},
		{Name: "Daily Standard", Kind: model.PlanKindDaily, DurationSeconds: 86400, DataCapBytes: 1 * gb, Price: 150, Description: "24 hours of internet access with 1GB data limit"},
		{Name: "Daily Premium", Kind: model.PlanKindDaily, DurationSeconds: 86400, DataCapBytes: 2 * gb, Price: 250, Description: "24 hours of internet access with 2GB data limit"},
		{Name: "Weekly Basic", Kind: model.PlanKindWeekly, DurationSeconds: 604800, DataCapBytes: 5 * gb, Price: 500, Description: "7 days of internet access with 5GB data limit"},
		{Name: "Weekly Premium", Kind: model.PlanKindWeekly, DurationSeconds: 604800, DataCapBytes: 10 * gb, Price: 800, Description: "7 days of internet access with 10GB data limit"},
		{Name: "Monthly Unlimited", Kind: model.PlanKindMonthly, DurationSeconds: 2592000, DataCapBytes: 0, Price: 2000, Description: "30 days of unlimited internet access"},
	}
}
