package model

import "time"

type AccessEventType string

const (
	AccessGrant  AccessEventType = "grant"
	AccessRevoke AccessEventType = "revoke"
)

// AccessEvent is pushed to network control when a device gains or loses access.
type AccessEvent struct {
	Type      AccessEventType `json:"type"`
	SessionID string          `json:"session_id"`
	MAC       string          `json:"mac"`
	IP        string          `json:"ip,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
	At        time.Time       `json:"at"`
}

type AdmissionAction string

const (
	ActionAllow   AdmissionAction = "allow"
	ActionAcquire AdmissionAction = "acquire" // redirect to voucher or payment
)

// Decision is the answer to "may this device have access right now".
type Decision struct {
	Allowed           bool
	Action            AdmissionAction
	Reason            string
	Session           *Session
	Quota             Quota
	BandwidthUpKbps   int
	BandwidthDownKbps int
}

// Dashboard aggregates read-only totals for the admin overview.
type Dashboard struct {
	Sessions    SessionStats
	Vouchers    VoucherCounts
	Revenue     RevenueTotals
	Currency    string
	Uptime      time.Duration
	GeneratedAt time.Time
}
