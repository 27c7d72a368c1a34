package payment

import (
	"context"
	"fmt"
	"sync"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway accepts every charge without contacting a provider.
// Used in dev mode and tests; callbacks are simulated with Callback.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]adapter.ChargeRequest // correlation id -> request
	settled map[string]bool                  // correlation id -> paid
	fail    error
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		charges: make(map[string]adapter.ChargeRequest),
		settled: make(map[string]bool),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

// FailWith makes subsequent charges fail with err; nil restores success.
func (g *NoopPaymentGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

func (g *NoopPaymentGateway) RequestCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.ChargeResult{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return adapter.ChargeResult{}, g.fail
	}
	g.seq++
	id := fmt.Sprintf("ws_CO_noop_%d", g.seq)
	g.charges[id] = req
	return adapter.ChargeResult{
		CorrelationID:     id,
		MerchantRequestID: fmt.Sprintf("noop-%d", g.seq),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

// VerifyCharge reports what Callback settled; an unanswered charge is pending.
func (g *NoopPaymentGateway) VerifyCharge(ctx context.Context, correlationID string) (adapter.ChargeStatus, error) {
	if err := ctx.Err(); err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[correlationID]; !ok {
		return adapter.ChargeStatus{ResultCode: 2001, ResultDesc: "unknown checkout request"}, nil
	}
	paid, answered := g.settled[correlationID]
	switch {
	case !answered:
		return adapter.ChargeStatus{Pending: true, ResultDesc: "The transaction is being processed"}, nil
	case paid:
		return adapter.ChargeStatus{Paid: true, ResultDesc: "The service request is processed successfully."}, nil
	default:
		return adapter.ChargeStatus{ResultCode: 1032, ResultDesc: "Request cancelled by user"}, nil
	}
}

// Callback settles a charge as the customer would and builds the result the
// provider would post for it.
func (g *NoopPaymentGateway) Callback(correlationID string, paid bool) (model.CallbackResult, error) {
	g.mu.Lock()
	req, ok := g.charges[correlationID]
	if ok {
		g.settled[correlationID] = paid
	}
	g.mu.Unlock()
	if !ok {
		return model.CallbackResult{}, domain.ErrNotFound
	}
	if !paid {
		return model.CallbackResult{Outcome: model.PaymentStatusFailed, ResultCode: 1032, ResultDesc: "Request cancelled by user"}, nil
	}
	return model.CallbackResult{
		Outcome:    model.PaymentStatusCompleted,
		ResultDesc: "The service request is processed successfully.",
		Receipt:    "NOOP" + correlationID[len(correlationID)-min(len(correlationID), 6):],
		Amount:     req.Amount,
		Phone:      req.Phone,
	}, nil
}
