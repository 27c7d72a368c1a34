package model

import (
	"strings"
	"time"

	"bytebill/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // charge accepted by provider, awaiting callback
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed funds
	PaymentStatusFailed    PaymentStatus = "failed"    // provider declined, or reclaimed after timeout
)

func (s PaymentStatus) Terminal() bool { return s == PaymentStatusCompleted || s == PaymentStatusFailed }

// PaymentRequest tracks one mobile-money charge from initiation to resolution.
type PaymentRequest struct {
	ID                string // UUID
	CorrelationID     string // provider checkout request id
	MerchantRequestID string
	Provider          string
	Phone             string // 2547XXXXXXXX
	PlanID            string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	CreatedAt         time.Time
	ResolvedAt        *time.Time
	DeviceMAC         string // empty when unknown at initiation
	DeviceIP          string
	Receipt           string
	ResultCode        *int
	ResultDesc        string
	SessionID         *string // set once the payment funds a session
}

// Device returns the device recorded at initiation, if any.
func (p *PaymentRequest) Device() (Device, bool) {
	if p.DeviceMAC == "" {
		return Device{}, false
	}
	return Device{MAC: p.DeviceMAC, IP: p.DeviceIP}, true
}

// StaleAt reports whether a pending request has outlived timeout.
func (p *PaymentRequest) StaleAt(now time.Time, timeout time.Duration) bool {
	return p.Status == PaymentStatusPending && now.Sub(p.CreatedAt) > timeout
}

func (p *PaymentRequest) Claimed() bool { return p.SessionID != nil && *p.SessionID != "" }

// PaymentResolution is what a terminal transition records alongside the status.
type PaymentResolution struct {
	ResolvedAt time.Time
	Receipt    string
	ResultCode *int
	ResultDesc string
}

// CallbackResult is the provider-neutral outcome carried by an inbound callback.
type CallbackResult struct {
	Outcome    PaymentStatus // completed | failed
	ResultCode int
	ResultDesc string
	Receipt    string
	Amount     int64
	Phone      string
	PaidAt     *time.Time
}

func (c CallbackResult) Resolution(now time.Time) PaymentResolution {
	code := c.ResultCode
	return PaymentResolution{ResolvedAt: now, Receipt: c.Receipt, ResultCode: &code, ResultDesc: c.ResultDesc}
}

// NormalizePhone converts Kenyan mobile formats (07XXXXXXXX, 01XXXXXXXX, 7XXXXXXXX,
// +2547XXXXXXXX) into the 2547XXXXXXXX form the provider expects.
func NormalizePhone(in string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(in))
	s = strings.TrimPrefix(s, "+")
	switch {
	case strings.HasPrefix(s, "254"):
	case strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	case len(s) == 9 && (s[0] == '7' || s[0] == '1'):
		s = "254" + s
	default:
		return "", domain.ErrInvalidPhone
	}
	if len(s) != 12 || (s[3] != '7' && s[3] != '1') {
		return "", domain.ErrInvalidPhone
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", domain.ErrInvalidPhone
		}
	}
	return s, nil
}

type RevenueTotals struct {
	Today int64
	Month int64
	Total int64
}
