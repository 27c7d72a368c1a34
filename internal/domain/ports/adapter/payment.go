package adapter

import "context"

// ChargeRequest asks the provider to push a payment prompt to the customer's phone.
type ChargeRequest struct {
	Phone       string // 2547XXXXXXXX
	Amount      int64
	Currency    string
	Reference   string // shown on the customer's statement
	Description string
}

// ChargeResult is the provider's acceptance of a charge request.
type ChargeResult struct {
	CorrelationID     string // checkout request id, echoed by the callback
	MerchantRequestID string
	CustomerMessage   string
}

// ChargeStatus is the provider's own record of a charge, queried out of band.
type ChargeStatus struct {
	Paid       bool
	Pending    bool // the provider has no final answer yet
	ResultCode int
	ResultDesc string
}

// PaymentGateway is the hex port for mobile-money providers.
// RequestCharge only initiates; completion arrives asynchronously via callback,
// and VerifyCharge confirms a reported completion with the provider.
type PaymentGateway interface {
	Name() string
	RequestCharge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	VerifyCharge(ctx context.Context, correlationID string) (ChargeStatus, error)
}
