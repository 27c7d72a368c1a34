package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type darajaStub struct {
	tokenCalls atomic.Int32
	lastPush   stkPushRequest
	lastQuery  stkQueryRequest
	lastAuth   string
	refuse     bool
	queryBody  string        // reply of the STK query endpoint
	queryCode  int           // its HTTP status, 200 when zero
	tokenHold  chan struct{} // blocks the token endpoint until closed
}

func (d *darajaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		d.tokenCalls.Add(1)
		if d.tokenHold != nil {
			<-d.tokenHold
		}
		_, _ = io.WriteString(w, `{"access_token":"tok-1","expires_in":"3599"}`)
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		d.lastAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&d.lastQuery))
		if d.queryCode != 0 {
			w.WriteHeader(d.queryCode)
		}
		_, _ = io.WriteString(w, d.queryBody)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		d.lastAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&d.lastPush))
		if d.refuse {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`)
			return
		}
		_, _ = io.WriteString(w, `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",`+
			`"ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`)
	})
	return mux
}

func newTestGateway(t *testing.T, stub *darajaStub) *MPesaGateway {
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	g, err := NewMPesaGateway(config.MPesaConfig{
		BaseURL:           srv.URL + "/",
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		ShortCode:         "174379",
		PassKey:           "pk",
		CallbackURL:       "https://hotspot.example/api/v1/payments/callback",
		TransactionType:   "CustomerPayBillOnline",
		RequestsPerSecond: 100,
	}, 5*time.Second, testLogger())
	require.NoError(t, err)
	g.nowFn = func() time.Time { return time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC) }
	return g
}

func TestMPesaGateway_RequestCharge(t *testing.T) {
	stub := &darajaStub{}
	g := newTestGateway(t, stub)
	req := adapter.ChargeRequest{Phone: "254712345678", Amount: 50, Reference: "ByteBillHotspot", Description: "1 Hour Basic plan"}

	res, err := g.RequestCharge(context.Background(), req)
	require.NoError(t, err)
	_, err = g.RequestCharge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_191220191020363925", res.CorrelationID)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)
	assert.Equal(t, int32(1), stub.tokenCalls.Load(), "token must be reused")
	assert.Equal(t, "Bearer tok-1", stub.lastAuth)

	p := stub.lastPush
	assert.Equal(t, "20240301100000", p.Timestamp, "timestamp is Nairobi time")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379pk20240301100000")), p.Password)
	assert.Equal(t, "254712345678", p.PartyA)
	assert.Equal(t, "174379", p.PartyB)
	assert.Equal(t, int64(50), p.Amount)
	assert.Equal(t, "ByteBillHots", p.AccountReference)
	assert.Len(t, p.TransactionDesc, 13)
}

func TestMPesaGateway_RefusalIsProviderUnavailable(t *testing.T) {
	g := newTestGateway(t, &darajaStub{refuse: true})

	_, err := g.RequestCharge(context.Background(), adapter.ChargeRequest{Phone: "254700000000", Amount: 10})

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")
}

func TestMPesaGateway_UnreachableIsProviderUnavailable(t *testing.T) {
	g, err := NewMPesaGateway(config.MPesaConfig{
		BaseURL: "http://127.0.0.1:1", ConsumerKey: "k", ConsumerSecret: "s",
		ShortCode: "1", PassKey: "p", CallbackURL: "https://x.example/cb",
	}, time.Second, testLogger())
	require.NoError(t, err)

	_, err = g.RequestCharge(context.Background(), adapter.ChargeRequest{Phone: "254700000000", Amount: 10})

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestMPesaGateway_VerifyCharge(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		want    adapter.ChargeStatus
		wantErr error
	}{
		{
			name: "paid",
			body: `{"ResponseCode":"0","ResponseDescription":"accepted","MerchantRequestID":"m","CheckoutRequestID":"ws_CO_1",` +
				`"ResultCode":"0","ResultDesc":"The service request is processed successfully."}`,
			want: adapter.ChargeStatus{Paid: true, ResultDesc: "The service request is processed successfully."},
		},
		{
			name: "cancelled",
			body: `{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`,
			want: adapter.ChargeStatus{ResultCode: 1032, ResultDesc: "Request cancelled by user"},
		},
		{
			name: "still processing",
			code: http.StatusInternalServerError,
			body: `{"requestId":"1","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`,
			want: adapter.ChargeStatus{Pending: true, ResultDesc: "The transaction is being processed"},
		},
		{
			name:    "refused",
			code:    http.StatusBadRequest,
			body:    `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid CheckoutRequestID"}`,
			wantErr: domain.ErrProviderUnavailable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &darajaStub{queryBody: tc.body, queryCode: tc.code}
			g := newTestGateway(t, stub)

			got, err := g.VerifyCharge(context.Background(), "ws_CO_1")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "ws_CO_1", stub.lastQuery.CheckoutRequestID)
			assert.Equal(t, "174379", stub.lastQuery.BusinessShortCode)
			assert.Equal(t, Password("174379", "pk", stub.lastQuery.Timestamp), stub.lastQuery.Password)
			assert.Equal(t, "Bearer tok-1", stub.lastAuth)
		})
	}
}

func TestMPesaGateway_TokenFetchHonoursContext(t *testing.T) {
	stub := &darajaStub{tokenHold: make(chan struct{})}
	g := newTestGateway(t, stub)
	defer close(stub.tokenHold)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.RequestCharge(ctx, adapter.ChargeRequest{Phone: "254712345678", Amount: 50})

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second, "caller must not wait for the client timeout")
}

func TestNewMPesaGateway_CallbackToken(t *testing.T) {
	g, err := NewMPesaGateway(config.MPesaConfig{
		ConsumerKey: "k", ConsumerSecret: "s", ShortCode: "1", PassKey: "p",
		CallbackURL: "https://hotspot.example/api/v1/payments/callback", CallbackToken: "cb secret",
	}, 0, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "https://hotspot.example/api/v1/payments/callback?token=cb+secret", g.cfg.CallbackURL)
}

func TestNewMPesaGateway_Validation(t *testing.T) {
	_, err := NewMPesaGateway(config.MPesaConfig{ConsumerKey: "k", ConsumerSecret: "s", ShortCode: "1", PassKey: "p", CallbackURL: "ftp://x"}, 0, testLogger())
	assert.Error(t, err)
	_, err = NewMPesaGateway(config.MPesaConfig{ShortCode: "1", PassKey: "p", CallbackURL: "https://x"}, 0, testLogger())
	assert.Error(t, err)
}

func TestParseSTKCallback(t *testing.T) {
	t.Run("success with metadata", func(t *testing.T) {
		body := `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",
			"ResultCode":0,"ResultDesc":"The service request is processed successfully.",
			"CallbackMetadata":{"Item":[{"Name":"Amount","Value":50.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"Balance"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`

		id, res, err := ParseSTKCallback([]byte(body))

		require.NoError(t, err)
		assert.Equal(t, "ws_CO_191220191020363925", id)
		assert.Equal(t, model.PaymentStatusCompleted, res.Outcome)
		assert.Equal(t, int64(50), res.Amount)
		assert.Equal(t, "NLJ7RT61SV", res.Receipt)
		assert.Equal(t, "254708374149", res.Phone)
		require.NotNil(t, res.PaidAt)
		assert.Equal(t, time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC), *res.PaidAt)
	})

	t.Run("cancelled by user", func(t *testing.T) {
		body := `{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

		id, res, err := ParseSTKCallback([]byte(body))

		require.NoError(t, err)
		assert.Equal(t, "ws_CO_2", id)
		assert.Equal(t, model.PaymentStatusFailed, res.Outcome)
		assert.Equal(t, 1032, res.ResultCode)
		assert.Empty(t, res.Receipt)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`, `{"Body":{"stkCallback":{"ResultCode":0}}}`} {
			_, _, err := ParseSTKCallback([]byte(body))
			assert.ErrorIs(t, err, domain.ErrInvalidArgument, body)
		}
	})
}

func TestNoopPaymentGateway_VerifyCharge(t *testing.T) {
	g := NewNoopPaymentGateway()
	ctx := context.Background()
	res, err := g.RequestCharge(ctx, adapter.ChargeRequest{Phone: "254712345678", Amount: 50})
	require.NoError(t, err)

	unanswered, err := g.VerifyCharge(ctx, res.CorrelationID)
	require.NoError(t, err)
	_, err = g.Callback(res.CorrelationID, true)
	require.NoError(t, err)
	paid, err := g.VerifyCharge(ctx, res.CorrelationID)
	require.NoError(t, err)
	unknown, err := g.VerifyCharge(ctx, "ws_CO_nope")
	require.NoError(t, err)

	assert.True(t, unanswered.Pending)
	assert.False(t, unanswered.Paid)
	assert.True(t, paid.Paid)
	assert.False(t, unknown.Paid || unknown.Pending)
}

func TestNoopPaymentGateway(t *testing.T) {
	g := NewNoopPaymentGateway()
	ctx := context.Background()

	res, err := g.RequestCharge(ctx, adapter.ChargeRequest{Phone: "254712345678", Amount: 50})
	require.NoError(t, err)
	paid, err := g.Callback(res.CorrelationID, true)
	require.NoError(t, err)
	declined, err := g.Callback(res.CorrelationID, false)
	require.NoError(t, err)
	_, err = g.Callback("unknown", true)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, model.PaymentStatusCompleted, paid.Outcome)
	assert.Equal(t, int64(50), paid.Amount)
	assert.NotEmpty(t, paid.Receipt)
	assert.Equal(t, model.PaymentStatusFailed, declined.Outcome)

	g.FailWith(domain.ErrProviderUnavailable)
	_, err = g.RequestCharge(ctx, adapter.ChargeRequest{Phone: "254712345678", Amount: 50})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
