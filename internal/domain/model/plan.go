package model

import (
	"strings"
	"time"

	"bytebill/internal/domain"

	"github.com/google/uuid"
)

type PlanKind string

const (
	PlanKindHourly    PlanKind = "hourly"
	PlanKindDaily     PlanKind = "daily"
	PlanKindWeekly    PlanKind = "weekly"
	PlanKindMonthly   PlanKind = "monthly"
	PlanKindUnlimited PlanKind = "unlimited"
)

const DefaultCurrency = "KES"

// Plan is a purchasable access allowance. Plans are never edited once created;
// operators add a new plan and deactivate the old one.
type Plan struct {
	ID              string
	Name            string
	Kind            PlanKind
	DurationSeconds int64
	DataCapBytes    int64 // 0 = unlimited
	Price           int64 // minor units
	Currency        string
	Description     string
	Active          bool
	CreatedAt       time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func (p *Plan) Duration() time.Duration { return time.Duration(p.DurationSeconds) * time.Second }

func (p *Plan) Unlimited() bool { return p.DataCapBytes == 0 }

// NewPlan validates and constructs an active plan.
func NewPlan(name string, kind PlanKind, durationSeconds, dataCapBytes, price int64, currency, description string) (*Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" || durationSeconds <= 0 || dataCapBytes < 0 || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	switch kind {
	case PlanKindHourly, PlanKindDaily, PlanKindWeekly, PlanKindMonthly, PlanKindUnlimited:
	case "":
		kind = kindForDuration(durationSeconds)
	default:
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Plan{
		ID:              uuid.NewString(),
		Name:            name,
		Kind:            kind,
		DurationSeconds: durationSeconds,
		DataCapBytes:    dataCapBytes,
		Price:           price,
		Currency:        strings.ToUpper(currency),
		Description:     description,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func kindForDuration(seconds int64) PlanKind {
	switch {
	case seconds <= 3600:
		return PlanKindHourly
	case seconds <= 86400:
		return PlanKindDaily
	case seconds <= 7*86400:
		return PlanKindWeekly
	default:
		return PlanKindMonthly
	}
}
