package model

import (
	"time"

	"bytebill/internal/domain"

	"github.com/oklog/ulid/v2"
)

type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"    // quota exhausted
	SessionStatusTerminated SessionStatus = "terminated" // operator or device logout
)

type SessionOrigin string

const (
	SessionOriginVoucher SessionOrigin = "voucher"
	SessionOriginPayment SessionOrigin = "payment"
)

// Session is a device's grant of network access under one plan.
// Duration and data cap are copied from the plan at creation so later catalog
// changes never alter a live session.
type Session struct {
	ID               string // ULID
	MAC              string
	IP               string
	PlanID           string
	Origin           SessionOrigin
	OriginRef        string // voucher code or payment id
	DurationSeconds  int64
	DataCapBytes     int64
	AmountPaid       int64
	StartedAt        time.Time
	Status           SessionStatus
	ElapsedSeconds   int64
	BytesIn          int64
	BytesOut         int64
	LastActivity     time.Time
	ExtensionSeconds int64 // sum of Extensions
	EndedAt          *time.Time
	EndReason        string

	Extensions []Extension // populated by detail reads only
}

// Extension is one entry of a session's grace-time log.
type Extension struct {
	ID        string
	SessionID string
	Seconds   int64
	Reason    string
	GrantedBy string
	GrantedAt time.Time
}

// NewSession builds an active session for device from plan.
func NewSession(plan *Plan, device Device, origin SessionOrigin, originRef string, amountPaid int64, now time.Time) (*Session, error) {
	if plan.IsZero() || device.IsZero() || originRef == "" {
		return nil, domain.ErrInvalidArgument
	}
	now = now.UTC()
	return &Session{
		ID:              ulid.Make().String(),
		MAC:             device.MAC,
		IP:              device.IP,
		PlanID:          plan.ID,
		Origin:          origin,
		OriginRef:       originRef,
		DurationSeconds: plan.DurationSeconds,
		DataCapBytes:    plan.DataCapBytes,
		AmountPaid:      amountPaid,
		StartedAt:       now,
		Status:          SessionStatusActive,
		LastActivity:    now,
	}, nil
}

func (s *Session) Active() bool { return s.Status == SessionStatusActive }

func (s *Session) DataUsed() int64 { return s.BytesIn + s.BytesOut }

// Deadline is start + plan duration + all granted extensions.
func (s *Session) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.DurationSeconds+s.ExtensionSeconds) * time.Second)
}

func NewExtension(sessionID string, seconds int64, reason, grantedBy string, now time.Time) (*Extension, error) {
	if sessionID == "" || seconds <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Extension{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Seconds:   seconds,
		Reason:    reason,
		GrantedBy: grantedBy,
		GrantedAt: now.UTC(),
	}, nil
}

// Usage is a cumulative-safe usage sample from network control. Byte counts are
// deltas added to the session; ElapsedSeconds is the collaborator's own view of
// connected time and is merged with max.
type Usage struct {
	BytesIn        int64
	BytesOut       int64
	ElapsedSeconds int64
	At             time.Time
}

func (u Usage) Validate() error {
	if u.BytesIn < 0 || u.BytesOut < 0 || u.ElapsedSeconds < 0 {
		return domain.ErrNegativeUsage
	}
	return nil
}

type SessionFilter struct {
	Status SessionStatus
	MAC    string
	Limit  int
	Offset int
}

type SessionStats struct {
	Active       int64
	Total        int64
	DataToday    int64
	DataTotal    int64
	DevicesToday int64
	StartedToday int64
}
