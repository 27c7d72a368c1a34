// File: internal/infra/adapters/payment/mpesa_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"bytebill/internal/config"
	"bytebill/internal/domain"
	"bytebill/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var _ adapter.PaymentGateway = (*MPesaGateway)(nil)

// Daraja timestamps and transaction dates are Nairobi local time.
var eat = time.FixedZone("EAT", 3*60*60)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// Returned by the query endpoint while the customer has not answered the prompt.
	errCodeProcessing = "500.001.1001"
)

// MPesaGateway implements adapter.PaymentGateway with Safaricom Daraja STK push.
type MPesaGateway struct {
	cfg     config.MPesaConfig
	client  *http.Client
	tokens  *darajaTokens
	limiter *rate.Limiter
	nowFn   func() time.Time
	log     *zerolog.Logger
}

func NewMPesaGateway(cfg config.MPesaConfig, timeout time.Duration, logger *zerolog.Logger) (*MPesaGateway, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("mpesa consumer credentials empty")
	}
	if cfg.ShortCode == "" || cfg.PassKey == "" {
		return nil, errors.New("mpesa short code or pass key empty")
	}
	if !strings.HasPrefix(cfg.CallbackURL, "https://") && !strings.HasPrefix(cfg.CallbackURL, "http://") {
		return nil, fmt.Errorf("invalid callback url %q", cfg.CallbackURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CallbackToken != "" {
		u, err := url.Parse(cfg.CallbackURL)
		if err != nil {
			return nil, fmt.Errorf("invalid callback url %q: %w", cfg.CallbackURL, err)
		}
		q := u.Query()
		q.Set("token", cfg.CallbackToken)
		u.RawQuery = q.Encode()
		cfg.CallbackURL = u.String()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	client := &http.Client{Timeout: timeout}
	l := logger.With().Str("component", "MPesaGateway").Logger()
	g := &MPesaGateway{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		nowFn:   time.Now,
		log:     &l,
	}
	g.tokens = &darajaTokens{
		url:    cfg.BaseURL + tokenPath,
		key:    cfg.ConsumerKey,
		secret: cfg.ConsumerSecret,
		client: client,
		nowFn:  func() time.Time { return g.nowFn() },
	}
	return g, nil
}

func (g *MPesaGateway) Name() string { return "mpesa" }

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// RequestCharge sends an STK push. Any transport or provider refusal is
// reported as domain.ErrProviderUnavailable.
func (g *MPesaGateway) RequestCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error) {
	if req.Amount <= 0 {
		return adapter.ChargeResult{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return adapter.ChargeResult{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		return adapter.ChargeResult{}, fmt.Errorf("%w: access token: %v", domain.ErrProviderUnavailable, err)
	}

	ts := g.nowFn().In(eat).Format("20060102150405")
	payload := stkPushRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          Password(g.cfg.ShortCode, g.cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   g.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            g.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       g.cfg.CallbackURL,
		AccountReference:  truncate(req.Reference, 12),
		TransactionDesc:   truncate(req.Description, 13),
	}
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+stkPath, bytes.NewReader(b))
	if err != nil {
		return adapter.ChargeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return adapter.ChargeResult{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var out stkPushResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return adapter.ChargeResult{}, fmt.Errorf("%w: http %d: decode: %v", domain.ErrProviderUnavailable, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.ResponseDescription
		}
		g.log.Warn().
			Int("status", resp.StatusCode).
			Str("error_code", out.ErrorCode).
			Str("response_code", out.ResponseCode).
			Str("message", msg).
			Msg("stk push refused")
		return adapter.ChargeResult{}, fmt.Errorf("%w: http %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, msg)
	}
	return adapter.ChargeResult{
		CorrelationID:     out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string      `json:"ResponseCode"`
	ResultCode   json.Number `json:"ResultCode"`
	ResultDesc   string      `json:"ResultDesc"`
	ErrorCode    string      `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
}

// VerifyCharge asks Daraja for the final state of an STK push. A charge the
// customer has not answered yet is reported as Pending.
func (g *MPesaGateway) VerifyCharge(ctx context.Context, correlationID string) (adapter.ChargeStatus, error) {
	if correlationID == "" {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: empty checkout request id", domain.ErrInvalidArgument)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: access token: %v", domain.ErrProviderUnavailable, err)
	}

	ts := g.nowFn().In(eat).Format("20060102150405")
	b, _ := json.Marshal(stkQueryRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          Password(g.cfg.ShortCode, g.cfg.PassKey, ts),
		Timestamp:         ts,
		CheckoutRequestID: correlationID,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+queryPath, bytes.NewReader(b))
	if err != nil {
		return adapter.ChargeStatus{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var out stkQueryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: http %d: decode: %v", domain.ErrProviderUnavailable, resp.StatusCode, err)
	}
	if out.ErrorCode == errCodeProcessing {
		return adapter.ChargeStatus{Pending: true, ResultDesc: out.ErrorMessage}, nil
	}
	if resp.StatusCode != http.StatusOK || out.ResponseCode != "0" || out.ResultCode == "" {
		g.log.Warn().
			Int("status", resp.StatusCode).
			Str("error_code", out.ErrorCode).
			Str("message", out.ErrorMessage).
			Msg("stk query refused")
		return adapter.ChargeStatus{}, fmt.Errorf("%w: http %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, out.ErrorMessage)
	}
	code, err := strconv.Atoi(out.ResultCode.String())
	if err != nil {
		return adapter.ChargeStatus{}, fmt.Errorf("%w: result code %q", domain.ErrProviderUnavailable, out.ResultCode)
	}
	return adapter.ChargeStatus{Paid: code == 0, ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

// Tokens are treated as expired this long before Daraja says so.
const tokenExpiryDelta = 30 * time.Second

// darajaTokens caches a client-credential token fetched with HTTP basic auth.
// Daraja returns expires_in as a string, which the stock oauth2
// clientcredentials flow cannot read. Concurrent refreshes share one fetch;
// each caller waits only as long as its own context allows.
type darajaTokens struct {
	url    string
	key    string
	secret string
	client *http.Client
	nowFn  func() time.Time

	mu    sync.Mutex
	tok   *oauth2.Token
	fetch singleflight.Group
}

func (s *darajaTokens) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.tok
	s.mu.Unlock()
	if tok != nil && s.nowFn().Add(tokenExpiryDelta).Before(tok.Expiry) {
		return tok, nil
	}

	ch := s.fetch.DoChan("token", func() (any, error) {
		// Not bound to one caller's cancellation; other callers may be waiting.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.client.Timeout)
		defer cancel()
		t, err := s.request(fctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tok = t
		s.mu.Unlock()
		return t, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*oauth2.Token), nil
	}
}

func (s *darajaTokens) request(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.key, s.secret)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token http %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("empty access token")
	}
	secs, err := strconv.Atoi(out.ExpiresIn.String())
	if err != nil || secs <= 0 {
		secs = 3599
	}
	return &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.nowFn().Add(time.Duration(secs) * time.Second),
	}, nil
}
