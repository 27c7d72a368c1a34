package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/btree"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ store *Store }

func NewPaymentRepo(store *Store) *paymentRepo {
	return &paymentRepo{store: store}
}

func getPayment(st *state, correlationID string) (*model.PaymentRequest, bool) {
	it := st.payments.Get(paymentItem{&model.PaymentRequest{CorrelationID: correlationID}})
	if it == nil {
		return nil, false
	}
	return it.(paymentItem).p, true
}

func copyPayment(p *model.PaymentRequest) *model.PaymentRequest {
	cp := *p
	return &cp
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	return r.store.write(tx, func(st *state) error {
		if _, ok := getPayment(st, p.CorrelationID); ok {
			return domain.ErrAlreadyExists
		}
		if p.Status == model.PaymentStatusPending {
			if _, ok := lookupRef(st.pendingPhone, p.Phone); ok {
				return domain.ErrAlreadyExists
			}
			st.pendingPhone.ReplaceOrInsert(ref{key: p.Phone, val: p.CorrelationID})
		}
		st.payments.ReplaceOrInsert(paymentItem{copyPayment(p)})
		return nil
	})
}

func (r *paymentRepo) FindByCorrelationID(ctx context.Context, tx repository.Tx, correlationID string) (*model.PaymentRequest, error) {
	var out *model.PaymentRequest
	err := r.store.read(tx, func(st *state) error {
		p, ok := getPayment(st, correlationID)
		if !ok {
			return domain.ErrNotFound
		}
		out = copyPayment(p)
		return nil
	})
	return out, err
}

func (r *paymentRepo) FindPendingByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.PaymentRequest, error) {
	var out *model.PaymentRequest
	err := r.store.read(tx, func(st *state) error {
		corr, ok := lookupRef(st.pendingPhone, phone)
		if !ok {
			return domain.ErrNotFound
		}
		p, _ := getPayment(st, corr)
		out = copyPayment(p)
		return nil
	})
	return out, err
}

func (r *paymentRepo) ResolveIfPending(ctx context.Context, tx repository.Tx, correlationID string, status model.PaymentStatus, res model.PaymentResolution) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrInvalidArgument
	}
	var done bool
	err := r.store.write(tx, func(st *state) error {
		p, ok := getPayment(st, correlationID)
		if !ok || p.Status != model.PaymentStatusPending {
			return nil
		}
		cp := copyPayment(p)
		at := res.ResolvedAt
		cp.Status = status
		cp.ResolvedAt = &at
		cp.Receipt = res.Receipt
		cp.ResultCode = res.ResultCode
		cp.ResultDesc = res.ResultDesc
		st.payments.ReplaceOrInsert(paymentItem{cp})
		st.pendingPhone.Delete(ref{key: p.Phone})
		done = true
		return nil
	})
	return done, err
}

func (r *paymentRepo) LinkSession(ctx context.Context, tx repository.Tx, correlationID, sessionID string) (bool, error) {
	var done bool
	err := r.store.write(tx, func(st *state) error {
		p, ok := getPayment(st, correlationID)
		if !ok || p.Status != model.PaymentStatusCompleted || p.Claimed() {
			return nil
		}
		cp := copyPayment(p)
		cp.SessionID = &sessionID
		st.payments.ReplaceOrInsert(paymentItem{cp})
		done = true
		return nil
	})
	return done, err
}

// ListPendingOlderThan walks the pending index; there is at most one entry per phone.
func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRequest, error) {
	var out []*model.PaymentRequest
	err := r.store.read(tx, func(st *state) error {
		st.pendingPhone.Ascend(func(it btree.Item) bool {
			p, _ := getPayment(st, it.(ref).val)
			if p.CreatedAt.Before(olderThan) {
				out = append(out, copyPayment(p))
			}
			return true
		})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *paymentRepo) SumCompleted(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	var total int64
	err := r.store.read(tx, func(st *state) error {
		st.payments.Ascend(func(it btree.Item) bool {
			p := it.(paymentItem).p
			if p.Status == model.PaymentStatusCompleted && p.ResolvedAt != nil && !p.ResolvedAt.Before(since) {
				total += p.Amount
			}
			return true
		})
		return nil
	})
	return total, err
}

func (r *paymentRepo) RevenueBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	acc, err := newBuckets(step)
	if err != nil {
		return nil, err
	}
	err = r.store.read(tx, func(st *state) error {
		st.payments.Ascend(func(it btree.Item) bool {
			p := it.(paymentItem).p
			if p.Status != model.PaymentStatusCompleted || p.ResolvedAt == nil || p.ResolvedAt.Before(from) {
				return true
			}
			b := acc.at(*p.ResolvedAt)
			b.Count++
			b.Amount += p.Amount
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc.sorted(), nil
}
