package memory

import (
	"context"
	"sort"

	"github.com/google/btree"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ store *Store }

func NewPlanRepo(store *Store) *planRepo {
	return &planRepo{store: store}
}

func getPlan(st *state, id string) (*model.Plan, bool) {
	it := st.plans.Get(planItem{&model.Plan{ID: id}})
	if it == nil {
		return nil, false
	}
	return it.(planItem).p, true
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	return r.store.write(tx, func(st *state) error {
		if _, ok := getPlan(st, p.ID); ok {
			return domain.ErrAlreadyExists
		}
		if _, ok := lookupRef(st.planNames, p.Name); ok {
			return domain.ErrAlreadyExists
		}
		cp := *p
		st.plans.ReplaceOrInsert(planItem{&cp})
		st.planNames.ReplaceOrInsert(ref{key: p.Name, val: p.ID})
		return nil
	})
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	var out *model.Plan
	err := r.store.read(tx, func(st *state) error {
		p, ok := getPlan(st, id)
		if !ok {
			return domain.ErrPlanNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r *planRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	var out *model.Plan
	err := r.store.read(tx, func(st *state) error {
		id, ok := lookupRef(st.planNames, name)
		if !ok {
			return domain.ErrPlanNotFound
		}
		p, _ := getPlan(st, id)
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

// List orders by price then name.
func (r *planRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	var out []*model.Plan
	err := r.store.read(tx, func(st *state) error {
		st.plans.Ascend(func(it btree.Item) bool {
			p := it.(planItem).p
			if !activeOnly || p.Active {
				cp := *p
				out = append(out, &cp)
			}
			return true
		})
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (r *planRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	return r.store.write(tx, func(st *state) error {
		p, ok := getPlan(st, id)
		if !ok {
			return domain.ErrPlanNotFound
		}
		cp := *p
		cp.Active = false
		st.plans.ReplaceOrInsert(planItem{&cp})
		return nil
	})
}
