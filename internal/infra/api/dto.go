package api

import (
	"time"

	"bytebill/internal/domain/model"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type planDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	DurationSeconds int64  `json:"duration_seconds"`
	DataCapBytes    int64  `json:"data_cap_bytes"`
	Price           int64  `json:"price"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	Active          bool   `json:"active"`
}

func toPlanDTO(p *model.Plan) planDTO {
	return planDTO{
		ID:              p.ID,
		Name:            p.Name,
		Kind:            string(p.Kind),
		DurationSeconds: p.DurationSeconds,
		DataCapBytes:    p.DataCapBytes,
		Price:           p.Price,
		Currency:        p.Currency,
		Description:     p.Description,
		Active:          p.Active,
	}
}

type voucherDTO struct {
	Code       string     `json:"code"`
	Display    string     `json:"display"`
	PlanID     string     `json:"plan_id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RedeemedBy *string    `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	SessionID  *string    `json:"session_id,omitempty"`
	BatchID    string     `json:"batch_id,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func toVoucherDTO(v *model.Voucher, now time.Time) voucherDTO {
	return voucherDTO{
		Code:       v.Code,
		Display:    v.DisplayCode(),
		PlanID:     v.PlanID,
		Status:     string(v.StatusAt(now)),
		CreatedAt:  v.CreatedAt,
		ExpiresAt:  v.ExpiresAt,
		RedeemedBy: v.RedeemedBy,
		RedeemedAt: v.RedeemedAt,
		SessionID:  v.SessionID,
		BatchID:    v.BatchID,
		CreatedBy:  v.CreatedBy,
		Notes:      v.Notes,
	}
}

type quotaDTO struct {
	RemainingSeconds int64  `json:"remaining_seconds"`
	RemainingBytes   *int64 `json:"remaining_bytes"` // null = unlimited
	Exhausted        bool   `json:"exhausted"`
	Reason           string `json:"reason,omitempty"`
}

func toQuotaDTO(q model.Quota) quotaDTO {
	out := quotaDTO{
		RemainingSeconds: max(int64(q.RemainingTime/time.Second), 0),
		Exhausted:        q.Exhausted,
		Reason:           q.Reason,
	}
	if !q.Unlimited {
		b := max(q.RemainingBytes, 0)
		out.RemainingBytes = &b
	}
	return out
}

type extensionDTO struct {
	Seconds   int64     `json:"seconds"`
	Reason    string    `json:"reason,omitempty"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}

type sessionDTO struct {
	ID               string         `json:"id"`
	MAC              string         `json:"mac"`
	IP               string         `json:"ip,omitempty"`
	PlanID           string         `json:"plan_id"`
	Origin           string         `json:"origin"`
	Status           string         `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	Deadline         time.Time      `json:"deadline"`
	DurationSeconds  int64          `json:"duration_seconds"`
	ExtensionSeconds int64          `json:"extension_seconds"`
	DataCapBytes     int64          `json:"data_cap_bytes"`
	BytesIn          int64          `json:"bytes_in"`
	BytesOut         int64          `json:"bytes_out"`
	ElapsedSeconds   int64          `json:"elapsed_seconds"`
	AmountPaid       int64          `json:"amount_paid"`
	LastActivity     time.Time      `json:"last_activity"`
	EndedAt          *time.Time     `json:"ended_at,omitempty"`
	EndReason        string         `json:"end_reason,omitempty"`
	Quota            *quotaDTO      `json:"quota,omitempty"`
	Extensions       []extensionDTO `json:"extensions,omitempty"`
}

func toSessionDTO(s *model.Session, now time.Time) sessionDTO {
	out := sessionDTO{
		ID:               s.ID,
		MAC:              s.MAC,
		IP:               s.IP,
		PlanID:           s.PlanID,
		Origin:           string(s.Origin),
		Status:           string(s.Status),
		StartedAt:        s.StartedAt,
		Deadline:         s.Deadline(),
		DurationSeconds:  s.DurationSeconds,
		ExtensionSeconds: s.ExtensionSeconds,
		DataCapBytes:     s.DataCapBytes,
		BytesIn:          s.BytesIn,
		BytesOut:         s.BytesOut,
		ElapsedSeconds:   s.ElapsedSeconds,
		AmountPaid:       s.AmountPaid,
		LastActivity:     s.LastActivity,
		EndedAt:          s.EndedAt,
		EndReason:        s.EndReason,
	}
	if s.Active() {
		q := toQuotaDTO(s.QuotaAt(now))
		out.Quota = &q
	}
	for _, e := range s.Extensions {
		out.Extensions = append(out.Extensions, extensionDTO{Seconds: e.Seconds, Reason: e.Reason, GrantedBy: e.GrantedBy, GrantedAt: e.GrantedAt})
	}
	return out
}

type paymentDTO struct {
	CorrelationID string     `json:"correlation_id"`
	Status        string     `json:"status"`
	PlanID        string     `json:"plan_id"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Phone         string     `json:"phone"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Receipt       string     `json:"receipt,omitempty"`
	ResultDesc    string     `json:"result_desc,omitempty"`
	SessionID     *string    `json:"session_id,omitempty"`
}

// maskPhone keeps the country prefix and last three digits.
func maskPhone(p string) string {
	if len(p) < 7 {
		return "***"
	}
	return p[:3] + "******" + p[len(p)-3:]
}

func toPaymentDTO(p *model.PaymentRequest) paymentDTO {
	return paymentDTO{
		CorrelationID: p.CorrelationID,
		Status:        string(p.Status),
		PlanID:        p.PlanID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Phone:         maskPhone(p.Phone),
		CreatedAt:     p.CreatedAt,
		ResolvedAt:    p.ResolvedAt,
		Receipt:       p.Receipt,
		ResultDesc:    p.ResultDesc,
		SessionID:     p.SessionID,
	}
}

type decisionDTO struct {
	Allowed           bool      `json:"allowed"`
	Action            string    `json:"action"`
	Reason            string    `json:"reason,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	Quota             *quotaDTO `json:"quota,omitempty"`
	BandwidthUpKbps   int       `json:"bandwidth_up_kbps,omitempty"`
	BandwidthDownKbps int       `json:"bandwidth_down_kbps,omitempty"`
}

func toDecisionDTO(d *model.Decision) decisionDTO {
	out := decisionDTO{
		Allowed:           d.Allowed,
		Action:            string(d.Action),
		Reason:            d.Reason,
		BandwidthUpKbps:   d.BandwidthUpKbps,
		BandwidthDownKbps: d.BandwidthDownKbps,
	}
	if d.Session != nil {
		out.SessionID = d.Session.ID
		q := toQuotaDTO(d.Quota)
		out.Quota = &q
	}
	return out
}

type dashboardDTO struct {
	Sessions struct {
		Active       int64 `json:"active"`
		Total        int64 `json:"total"`
		StartedToday int64 `json:"started_today"`
		DevicesToday int64 `json:"devices_today"`
	} `json:"sessions"`
	Data struct {
		TodayBytes int64 `json:"today_bytes"`
		TotalBytes int64 `json:"total_bytes"`
	} `json:"data"`
	Vouchers voucherCountsDTO `json:"vouchers"`
	Revenue  struct {
		Today    int64  `json:"today"`
		Month    int64  `json:"month"`
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"revenue"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	GeneratedAt   time.Time `json:"generated_at"`
}

type voucherCountsDTO struct {
	Total   int64 `json:"total"`
	Unused  int64 `json:"unused"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
}

func toVoucherCountsDTO(c model.VoucherCounts) voucherCountsDTO {
	return voucherCountsDTO{Total: c.Total, Unused: c.Unused, Used: c.Used, Expired: c.Expired}
}

func toDashboardDTO(d *model.Dashboard) dashboardDTO {
	var out dashboardDTO
	out.Sessions.Active = d.Sessions.Active
	out.Sessions.Total = d.Sessions.Total
	out.Sessions.StartedToday = d.Sessions.StartedToday
	out.Sessions.DevicesToday = d.Sessions.DevicesToday
	out.Data.TodayBytes = d.Sessions.DataToday
	out.Data.TotalBytes = d.Sessions.DataTotal
	out.Vouchers = toVoucherCountsDTO(d.Vouchers)
	out.Revenue.Today = d.Revenue.Today
	out.Revenue.Month = d.Revenue.Month
	out.Revenue.Total = d.Revenue.Total
	out.Revenue.Currency = d.Currency
	out.UptimeSeconds = int64(d.Uptime / time.Second)
	out.GeneratedAt = d.GeneratedAt
	return out
}

type chartPointDTO struct {
	Start    time.Time `json:"start"`
	Count    int64     `json:"count"` // sessions started or payments completed
	Amount   int64     `json:"amount"`
	BytesIn  int64     `json:"bytes_in"`
	BytesOut int64     `json:"bytes_out"`
}

type chartDTO struct {
	Kind        string          `json:"kind"`
	Period      string          `json:"period"`
	StepSeconds int64           `json:"step_seconds"`
	Points      []chartPointDTO `json:"points"`
}

func toChartDTO(s *model.Series) chartDTO {
	out := chartDTO{
		Kind:        string(s.Kind),
		Period:      string(s.Period),
		StepSeconds: int64(s.Step / time.Second),
		Points:      make([]chartPointDTO, 0, len(s.Buckets)),
	}
	for _, b := range s.Buckets {
		out.Points = append(out.Points, chartPointDTO{Start: b.Start, Count: b.Count, Amount: b.Amount, BytesIn: b.BytesIn, BytesOut: b.BytesOut})
	}
	return out
}

type alertDTO struct {
	Code    string    `json:"code"`
	Level   string    `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Count   int64     `json:"count"`
	At      time.Time `json:"at"`
}

func toAlertDTO(a model.Alert) alertDTO {
	return alertDTO{Code: a.Code, Level: string(a.Level), Title: a.Title, Message: a.Message, Count: a.Count, At: a.At}
}
