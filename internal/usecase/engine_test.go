//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"bytebill/internal/domain/model"
	"bytebill/internal/usecase"
)

// testEngine wires every use case over shared mocks.
type testEngine struct {
	plans    *MockPlanRepo
	vouchers *MockVoucherRepo
	payments *MockPaymentRepo
	sessRepo *MockSessionRepo
	tm       *MockTxManager
	locker   *MockLocker
	limiter  *MockRateLimiter
	gateway  *MockPaymentGateway
	events   *MockPublisher
	notifier *MockNotifier

	planUC      usecase.PlanUseCase
	sessionUC   usecase.SessionUseCase
	voucherUC   usecase.VoucherUseCase
	paymentUC   usecase.PaymentUseCase
	quotaUC     usecase.QuotaUseCase
	admissionUC usecase.AdmissionUseCase
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	e := &testEngine{
		plans:    NewMockPlanRepo(),
		vouchers: NewMockVoucherRepo(),
		payments: NewMockPaymentRepo(),
		sessRepo: NewMockSessionRepo(),
		tm:       NewMockTxManager(),
		locker:   NewMockLocker(),
		limiter:  NewMockRateLimiter(),
		gateway:  &MockPaymentGateway{},
		events:   &MockPublisher{},
		notifier: &MockNotifier{},
	}
	logger := newTestLogger()
	locks := usecase.LockPolicy{TTL: 5 * time.Second, Wait: 2 * time.Second}

	e.planUC = usecase.NewPlanUseCase(e.plans, logger)
	e.sessionUC = usecase.NewSessionUseCase(e.sessRepo, e.tm, e.events, logger)
	e.voucherUC = usecase.NewVoucherUseCase(e.vouchers, e.plans, e.sessionUC, e.tm, e.locker, e.limiter,
		usecase.VoucherPolicy{MaxBatch: 1000, MaxExpiryDays: 365, PageSize: 4, RedeemAttempts: 100, RedeemWindow: time.Minute},
		locks, logger)
	e.paymentUC = usecase.NewPaymentUseCase(e.payments, e.plans, e.sessionUC, e.tm, e.gateway, e.locker, e.notifier,
		usecase.PaymentPolicy{PendingTimeout: 3 * time.Minute, ProviderTimeout: time.Second},
		locks, logger)
	e.quotaUC = usecase.NewQuotaUseCase(e.sessRepo, e.sessionUC, 2, logger)
	e.admissionUC = usecase.NewAdmissionUseCase(e.sessionUC, staticSettings(model.DefaultSettings()), logger)
	return e
}

// mustPlan creates an active plan directly through the plan use case.
func (e *testEngine) mustPlan(t *testing.T, name string, kind model.PlanKind, seconds, capBytes, price int64) *model.Plan {
	t.Helper()
	p, err := e.planUC.Create(context.Background(), usecase.CreatePlanInput{
		Name: name, Kind: kind, DurationSeconds: seconds, DataCapBytes: capBytes, Price: price,
	})
	if err != nil {
		t.Fatalf("create plan %q: %v", name, err)
	}
	return p
}

// mustVoucher generates a single voucher for plan valid for days.
func (e *testEngine) mustVoucher(t *testing.T, plan *model.Plan, days int) *model.Voucher {
	t.Helper()
	vs, err := e.voucherUC.Generate(context.Background(), usecase.GenerateVouchersInput{
		PlanID: plan.ID, Count: 1, ExpiresInDays: days, CreatedBy: "admin",
	}, t0)
	if err != nil {
		t.Fatalf("generate voucher: %v", err)
	}
	return vs[0]
}
