package model

import "time"

type VoucherStatus string

const (
	VoucherStatusUnused  VoucherStatus = "unused"
	VoucherStatusUsed    VoucherStatus = "used"
	VoucherStatusExpired VoucherStatus = "expired" // derived, never stored
)

// Voucher is a pre-paid entitlement to one session of PlanID.
// Status holds the stored state (unused|used); use StatusAt for what callers should see.
type Voucher struct {
	Code       string
	PlanID     string
	Status     VoucherStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RedeemedBy *string
	RedeemedAt *time.Time
	SessionID  *string
	BatchID    string
	CreatedBy  string
	Notes      string
}

// ExpiredAt reports whether redemption at now falls past ExpiresAt.
func (v *Voucher) ExpiredAt(now time.Time) bool { return now.After(v.ExpiresAt) }

// StatusAt derives the visible status: an unused voucher past its expiry reads as expired.
func (v *Voucher) StatusAt(now time.Time) VoucherStatus {
	if v.Status == VoucherStatusUnused && v.ExpiredAt(now) {
		return VoucherStatusExpired
	}
	return v.Status
}

// DisplayCode renders the code in XXXX-XXXX-XXXX groups.
func (v *Voucher) DisplayCode() string { return FormatVoucherCode(v.Code) }

type VoucherFilter struct {
	PlanID  string
	BatchID string
	Status  VoucherStatus // matched against StatusAt(Now)
	Now     time.Time
}

// VoucherCursor is the keyset position for paging vouchers in creation order.
type VoucherCursor struct {
	CreatedAt time.Time
	Code      string
}

type VoucherCounts struct {
	Total   int64
	Unused  int64
	Used    int64
	Expired int64
}
