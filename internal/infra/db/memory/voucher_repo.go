package memory

import (
	"context"
	"time"

	"github.com/google/btree"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.VoucherRepository = (*voucherRepo)(nil)

type voucherRepo struct{ store *Store }

func NewVoucherRepo(store *Store) *voucherRepo {
	return &voucherRepo{store: store}
}

func getVoucher(st *state, code string) (*model.Voucher, bool) {
	it := st.vouchers.Get(voucherItem{&model.Voucher{Code: code}})
	if it == nil {
		return nil, false
	}
	return it.(voucherItem).v, true
}

func (r *voucherRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	return r.store.write(tx, func(st *state) error {
		if _, ok := getVoucher(st, v.Code); ok {
			return domain.ErrAlreadyExists
		}
		cp := *v
		st.vouchers.ReplaceOrInsert(voucherItem{&cp})
		st.voucherOrder.ReplaceOrInsert(voucherOrder{at: v.CreatedAt, code: v.Code})
		return nil
	})
}

func (r *voucherRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	var ok bool
	err := r.store.read(tx, func(st *state) error {
		_, ok = getVoucher(st, code)
		return nil
	})
	return ok, err
}

func (r *voucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	var out *model.Voucher
	err := r.store.read(tx, func(st *state) error {
		v, ok := getVoucher(st, code)
		if !ok {
			return domain.ErrNotFound
		}
		cp := *v
		out = &cp
		return nil
	})
	return out, err
}

func (r *voucherRepo) MarkUsed(ctx context.Context, tx repository.Tx, code, mac, sessionID string, at time.Time) (bool, error) {
	var done bool
	err := r.store.write(tx, func(st *state) error {
		v, ok := getVoucher(st, code)
		if !ok || v.Status != model.VoucherStatusUnused {
			return nil
		}
		cp := *v
		cp.Status = model.VoucherStatusUsed
		cp.RedeemedBy, cp.RedeemedAt, cp.SessionID = &mac, &at, &sessionID
		st.vouchers.ReplaceOrInsert(voucherItem{&cp})
		done = true
		return nil
	})
	return done, err
}

func voucherMatches(v *model.Voucher, f model.VoucherFilter) bool {
	if f.PlanID != "" && v.PlanID != f.PlanID {
		return false
	}
	if f.BatchID != "" && v.BatchID != f.BatchID {
		return false
	}
	return f.Status == "" || v.StatusAt(f.Now) == f.Status
}

func (r *voucherRepo) ListPage(ctx context.Context, tx repository.Tx, f model.VoucherFilter, after *model.VoucherCursor, limit int) ([]*model.Voucher, error) {
	switch f.Status {
	case "", model.VoucherStatusUnused, model.VoucherStatusUsed, model.VoucherStatusExpired:
	default:
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 {
		return nil, nil
	}
	out := make([]*model.Voucher, 0, limit)
	err := r.store.read(tx, func(st *state) error {
		visit := func(it btree.Item) bool {
			o := it.(voucherOrder)
			if after != nil && o.at.Equal(after.CreatedAt) && o.code == after.Code {
				return true
			}
			v, _ := getVoucher(st, o.code)
			if voucherMatches(v, f) {
				cp := *v
				out = append(out, &cp)
			}
			return len(out) < limit
		}
		if after == nil {
			st.voucherOrder.Ascend(visit)
		} else {
			st.voucherOrder.AscendGreaterOrEqual(voucherOrder{at: after.CreatedAt, code: after.Code}, visit)
		}
		return nil
	})
	return out, err
}

func (r *voucherRepo) Counts(ctx context.Context, tx repository.Tx, now time.Time) (model.VoucherCounts, error) {
	var c model.VoucherCounts
	err := r.store.read(tx, func(st *state) error {
		st.vouchers.Ascend(func(it btree.Item) bool {
			c.Total++
			switch it.(voucherItem).v.StatusAt(now) {
			case model.VoucherStatusUnused:
				c.Unused++
			case model.VoucherStatusUsed:
				c.Used++
			case model.VoucherStatusExpired:
				c.Expired++
			}
			return true
		})
		return nil
	})
	return c, err
}
