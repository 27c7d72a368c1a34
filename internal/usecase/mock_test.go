//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func testDevice(mac string) model.Device {
	d, err := model.NewDevice(mac, "10.0.0.10")
	if err != nil {
		panic(err)
	}
	return d
}

// =============================
// Repositories
// =============================

// ---- Plans ----

type MockPlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo { return &MockPlanRepo{plans: map[string]*model.Plan{}} }

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.plans {
		if x.Name == p.Name {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plans {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanRepo) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		if activeOnly && !p.Active {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (m *MockPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---- Vouchers ----

type MockVoucherRepo struct {
	mu       sync.RWMutex
	vouchers map[string]*model.Voucher

	ExistsFunc func(ctx context.Context, tx repository.Tx, code string) (bool, error)
}

var _ repository.VoucherRepository = (*MockVoucherRepo)(nil)

func NewMockVoucherRepo() *MockVoucherRepo {
	return &MockVoucherRepo{vouchers: map[string]*model.Voucher{}}
}

func (m *MockVoucherRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vouchers[v.Code]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *v
	m.vouchers[v.Code] = &cp
	return nil
}

func (m *MockVoucherRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, tx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vouchers[code]
	return ok, nil
}

func (m *MockVoucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vouchers[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MockVoucherRepo) MarkUsed(ctx context.Context, tx repository.Tx, code, mac, sessionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[code]
	if !ok || v.Status != model.VoucherStatusUnused {
		return false, nil
	}
	v.Status = model.VoucherStatusUsed
	v.RedeemedBy, v.RedeemedAt, v.SessionID = ptr(mac), ptr(at), ptr(sessionID)
	return true, nil
}

func (m *MockVoucherRepo) ListPage(ctx context.Context, tx repository.Tx, f model.VoucherFilter, after *model.VoucherCursor, limit int) ([]*model.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*model.Voucher, 0, len(m.vouchers))
	for _, v := range m.vouchers {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].Code < all[j].Code
	})
	var out []*model.Voucher
	for _, v := range all {
		if after != nil && (v.CreatedAt.Before(after.CreatedAt) || (v.CreatedAt.Equal(after.CreatedAt) && v.Code <= after.Code)) {
			continue
		}
		if f.PlanID != "" && v.PlanID != f.PlanID {
			continue
		}
		if f.BatchID != "" && v.BatchID != f.BatchID {
			continue
		}
		if f.Status != "" && v.StatusAt(f.Now) != f.Status {
			continue
		}
		cp := *v
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockVoucherRepo) Counts(ctx context.Context, tx repository.Tx, now time.Time) (model.VoucherCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c model.VoucherCounts
	for _, v := range m.vouchers {
		c.Total++
		switch v.StatusAt(now) {
		case model.VoucherStatusUnused:
			c.Unused++
		case model.VoucherStatusUsed:
			c.Used++
		case model.VoucherStatusExpired:
			c.Expired++
		}
	}
	return c, nil
}

// ---- Payments ----

type MockPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]*model.PaymentRequest // by correlation id

	SumCompletedFunc   func(ctx context.Context, tx repository.Tx, since time.Time) (int64, error)
	RevenueBucketsFunc func(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{payments: map[string]*model.PaymentRequest{}}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.CorrelationID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, x := range m.payments {
		if x.Phone == p.Phone && x.Status == model.PaymentStatusPending && p.Status == model.PaymentStatusPending {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.payments[p.CorrelationID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByCorrelationID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindPendingByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.Phone == phone && p.Status == model.PaymentStatusPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) ResolveIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, res model.PaymentResolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.ResolvedAt = ptr(res.ResolvedAt)
	p.Receipt, p.ResultCode, p.ResultDesc = res.Receipt, res.ResultCode, res.ResultDesc
	return true, nil
}

func (m *MockPaymentRepo) LinkSession(ctx context.Context, tx repository.Tx, id, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentStatusCompleted || p.Claimed() {
		return false, nil
	}
	p.SessionID = ptr(sessionID)
	return true, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentRequest
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) SumCompleted(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	if m.SumCompletedFunc != nil {
		return m.SumCompletedFunc(ctx, tx, since)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusCompleted && p.ResolvedAt != nil && !p.ResolvedAt.Before(since) {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (m *MockPaymentRepo) RevenueBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	if m.RevenueBucketsFunc != nil {
		return m.RevenueBucketsFunc(ctx, tx, from, step)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	by := map[time.Time]*model.Bucket{}
	for _, p := range m.payments {
		if p.Status != model.PaymentStatusCompleted || p.ResolvedAt == nil || p.ResolvedAt.Before(from) {
			continue
		}
		b := mockBucket(by, p.ResolvedAt.UTC().Truncate(step))
		b.Count++
		b.Amount += p.Amount
	}
	return flattenBuckets(by), nil
}

func mockBucket(by map[time.Time]*model.Bucket, start time.Time) *model.Bucket {
	b, ok := by[start]
	if !ok {
		b = &model.Bucket{Start: start}
		by[start] = b
	}
	return b
}

// flattenBuckets returns buckets in map order; callers must not rely on it.
func flattenBuckets(by map[time.Time]*model.Bucket) []model.Bucket {
	out := make([]model.Bucket, 0, len(by))
	for _, b := range by {
		out = append(out, *b)
	}
	return out
}

// ---- Sessions ----

type MockSessionRepo struct {
	mu         sync.RWMutex
	sessions   map[string]*model.Session
	extensions map[string][]model.Extension

	EndFunc func(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus, reason string, at time.Time) (bool, error)
}

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{sessions: map[string]*model.Session{}, extensions: map[string][]model.Extension{}}
}

func (m *MockSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.sessions {
		if x.MAC == s.MAC && x.Active() {
			return domain.ErrDeviceAlreadyActive
		}
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MockSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSessionRepo) FindActiveByMAC(ctx context.Context, tx repository.Tx, mac string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.MAC == mac && s.Active() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSessionRepo) AddExtension(ctx context.Context, tx repository.Tx, e *model.Extension) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[e.SessionID]
	if !ok || !s.Active() {
		return false, nil
	}
	s.ExtensionSeconds += e.Seconds
	m.extensions[e.SessionID] = append(m.extensions[e.SessionID], *e)
	return true, nil
}

func (m *MockSessionRepo) ListExtensions(ctx context.Context, tx repository.Tx, sessionID string) ([]model.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Extension(nil), m.extensions[sessionID]...), nil
}

func (m *MockSessionRepo) End(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus, reason string, at time.Time) (bool, error) {
	if m.EndFunc != nil {
		return m.EndFunc(ctx, tx, id, status, reason, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.Active() {
		return false, nil
	}
	s.Status, s.EndReason, s.EndedAt = status, reason, ptr(at)
	return true, nil
}

func (m *MockSessionRepo) AddUsage(ctx context.Context, tx repository.Tx, id string, u model.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.BytesIn += u.BytesIn
	s.BytesOut += u.BytesOut
	s.ElapsedSeconds = max(s.ElapsedSeconds, u.ElapsedSeconds)
	if u.At.After(s.LastActivity) {
		s.LastActivity = u.At
	}
	return nil
}

func (m *MockSessionRepo) ListActive(ctx context.Context, tx repository.Tx, afterID string, limit int) ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Active() && s.ID > afterID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSessionRepo) List(ctx context.Context, tx repository.Tx, f model.SessionFilter) ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if (f.Status == "" || s.Status == f.Status) && (f.MAC == "" || s.MAC == f.MAC) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockSessionRepo) Stats(ctx context.Context, tx repository.Tx, dayStart time.Time) (model.SessionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st model.SessionStats
	devices := map[string]struct{}{}
	for _, s := range m.sessions {
		st.Total++
		st.DataTotal += s.DataUsed()
		if s.Active() {
			st.Active++
		}
		if !s.StartedAt.Before(dayStart) {
			st.StartedToday++
			st.DataToday += s.DataUsed()
			devices[s.MAC] = struct{}{}
		}
	}
	st.DevicesToday = int64(len(devices))
	return st, nil
}

func (m *MockSessionRepo) StartBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	by := map[time.Time]*model.Bucket{}
	for _, s := range m.sessions {
		if s.StartedAt.Before(from) {
			continue
		}
		b := mockBucket(by, s.StartedAt.UTC().Truncate(step))
		b.Count++
		b.BytesIn += s.BytesIn
		b.BytesOut += s.BytesOut
	}
	return flattenBuckets(by), nil
}

// ---- Settings ----

type MockSettingsRepo struct {
	mu    sync.Mutex
	saved *model.Settings
}

func (m *MockSettingsRepo) Load(ctx context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, domain.ErrNotFound
	}
	cp := *m.saved
	return &cp, nil
}

func (m *MockSettingsRepo) Save(ctx context.Context, s *model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.saved = &cp
	return nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]chan struct{}{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = make(chan struct{})
	return uuid.NewString(), nil
}

func (l *MockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	for {
		l.mu.Lock()
		if err, bad := l.ErrOn[key]; bad {
			l.mu.Unlock()
			return "", err
		}
		wait, ok := l.held[key]
		if !ok {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return uuid.NewString(), nil
		}
		l.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return "", domain.ErrLockNotAcquired
		}
	}
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.held[key]; ok {
		close(ch)
		delete(l.held, key)
	}
	return nil
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Rate limiter ----

type MockRateLimiter struct {
	mu    sync.Mutex
	count map[string]int

	AllowFunc    func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ExceededFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func NewMockRateLimiter() *MockRateLimiter { return &MockRateLimiter{count: map[string]int{}} }

func (r *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.AllowFunc != nil {
		return r.AllowFunc(ctx, key, limit, window)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count[key]++
	return r.count[key] <= limit, nil
}

func (r *MockRateLimiter) Exceeded(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.ExceededFunc != nil {
		return r.ExceededFunc(ctx, key, limit, window)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[key] >= limit, nil
}

func (r *MockRateLimiter) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[key]
}

// ---- Payment gateway ----

type MockPaymentGateway struct {
	mu    sync.Mutex
	Calls []adapter.ChargeRequest

	RequestChargeFunc func(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error)
	VerifyChargeFunc  func(ctx context.Context, correlationID string) (adapter.ChargeStatus, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) RequestCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, req)
	g.mu.Unlock()
	if g.RequestChargeFunc != nil {
		return g.RequestChargeFunc(ctx, req)
	}
	return adapter.ChargeResult{CorrelationID: "ws_CO_" + uuid.NewString(), MerchantRequestID: "mr-1", CustomerMessage: "Success. Request accepted for processing"}, nil
}

func (g *MockPaymentGateway) VerifyCharge(ctx context.Context, correlationID string) (adapter.ChargeStatus, error) {
	if g.VerifyChargeFunc != nil {
		return g.VerifyChargeFunc(ctx, correlationID)
	}
	return adapter.ChargeStatus{Paid: true}, nil
}

// ---- Events / notifier / settings / host ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []model.AccessEvent
}

func (p *MockPublisher) Publish(ctx context.Context, ev model.AccessEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
}

func (p *MockPublisher) Count(t model.AccessEventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.Events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []string
}

func (n *MockNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, text)
	return nil
}

type staticSettings model.Settings

func (s staticSettings) Current() model.Settings { return model.Settings(s) }

type MockHostInfo struct {
	UptimeFunc func(ctx context.Context) (uint64, error)
}

func (h MockHostInfo) Uptime(ctx context.Context) (uint64, error) {
	if h.UptimeFunc != nil {
		return h.UptimeFunc(ctx)
	}
	return 3600, nil
}
