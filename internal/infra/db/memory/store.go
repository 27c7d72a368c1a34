// Package memory is a single-process storage backend for development and tests.
// Every table is a google/btree; transactions work on a lazy copy-on-write clone
// of all trees that replaces the live state on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/jackc/pgx/v4"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

const degree = 16

type planItem struct{ p *model.Plan }

func (a planItem) Less(b btree.Item) bool { return a.p.ID < b.(planItem).p.ID }

type voucherItem struct{ v *model.Voucher }

func (a voucherItem) Less(b btree.Item) bool { return a.v.Code < b.(voucherItem).v.Code }

// voucherOrder indexes vouchers by creation order for keyset paging.
type voucherOrder struct {
	at   time.Time
	code string
}

func (a voucherOrder) Less(b btree.Item) bool {
	o := b.(voucherOrder)
	if !a.at.Equal(o.at) {
		return a.at.Before(o.at)
	}
	return a.code < o.code
}

type sessionItem struct{ s *model.Session }

func (a sessionItem) Less(b btree.Item) bool { return a.s.ID < b.(sessionItem).s.ID }

type extensionItem struct{ e model.Extension }

func (a extensionItem) Less(b btree.Item) bool {
	o := b.(extensionItem).e
	if a.e.SessionID != o.SessionID {
		return a.e.SessionID < o.SessionID
	}
	if !a.e.GrantedAt.Equal(o.GrantedAt) {
		return a.e.GrantedAt.Before(o.GrantedAt)
	}
	return a.e.ID < o.ID
}

type paymentItem struct{ p *model.PaymentRequest }

func (a paymentItem) Less(b btree.Item) bool {
	return a.p.CorrelationID < b.(paymentItem).p.CorrelationID
}

// ref is a unique secondary index entry.
type ref struct{ key, val string }

func (a ref) Less(b btree.Item) bool { return a.key < b.(ref).key }

type state struct {
	plans        *btree.BTree // planItem
	planNames    *btree.BTree // ref name -> id
	vouchers     *btree.BTree // voucherItem
	voucherOrder *btree.BTree // voucherOrder
	sessions     *btree.BTree // sessionItem
	activeMAC    *btree.BTree // ref mac -> session id
	extensions   *btree.BTree // extensionItem
	payments     *btree.BTree // paymentItem
	pendingPhone *btree.BTree // ref phone -> correlation id
}

func newState() *state {
	return &state{
		plans:        btree.New(degree),
		planNames:    btree.New(degree),
		vouchers:     btree.New(degree),
		voucherOrder: btree.New(degree),
		sessions:     btree.New(degree),
		activeMAC:    btree.New(degree),
		extensions:   btree.New(degree),
		payments:     btree.New(degree),
		pendingPhone: btree.New(degree),
	}
}

// clone is O(1); nodes are copied lazily on first write to either side.
func (s *state) clone() *state {
	return &state{
		plans:        s.plans.Clone(),
		planNames:    s.planNames.Clone(),
		vouchers:     s.vouchers.Clone(),
		voucherOrder: s.voucherOrder.Clone(),
		sessions:     s.sessions.Clone(),
		activeMAC:    s.activeMAC.Clone(),
		extensions:   s.extensions.Clone(),
		payments:     s.payments.Clone(),
		pendingPhone: s.pendingPhone.Clone(),
	}
}

func lookupRef(t *btree.BTree, key string) (string, bool) {
	it := t.Get(ref{key: key})
	if it == nil {
		return "", false
	}
	return it.(ref).val, true
}

// Store owns the live state. mu is a storage latch only: it is held for the
// duration of one operation or one transaction body, never across I/O.
type Store struct {
	mu  sync.Mutex
	cur *state
}

func NewStore() *Store {
	return &Store{cur: newState()}
}

// Tx is the memory transaction handle passed through repository.Tx.
type Tx struct {
	st *state
}

func (s *Store) read(tx repository.Tx, fn func(st *state) error) error {
	switch v := tx.(type) {
	case *Tx:
		return fn(v.st)
	case nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.cur)
	default:
		return domain.ErrInvalidExecContext
	}
}

// write applies fn atomically: outside a transaction it runs on a clone that is
// published only when fn succeeds.
func (s *Store) write(tx repository.Tx, fn func(st *state) error) error {
	switch v := tx.(type) {
	case *Tx:
		return fn(v.st)
	case nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		next := s.cur.clone()
		if err := fn(next); err != nil {
			return err
		}
		s.cur = next
		return nil
	default:
		return domain.ErrInvalidExecContext
	}
}

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager serializes transactions against the store.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	tx := &Tx{st: m.store.cur.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.store.cur = tx.st
	return nil
}

// buckets accumulates rows into UTC buckets of a fixed width.
type buckets struct {
	step time.Duration
	by   map[time.Time]*model.Bucket
}

func newBuckets(step time.Duration) (*buckets, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: bucket width %s", domain.ErrInvalidArgument, step)
	}
	return &buckets{step: step, by: map[time.Time]*model.Bucket{}}, nil
}

func (b *buckets) at(t time.Time) *model.Bucket {
	start := t.UTC().Truncate(b.step)
	x, ok := b.by[start]
	if !ok {
		x = &model.Bucket{Start: start}
		b.by[start] = x
	}
	return x
}

func (b *buckets) sorted() []model.Bucket {
	out := make([]model.Bucket, 0, len(b.by))
	for _, x := range b.by {
		out = append(out, *x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
