// File: internal/usecase/admission_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/infra/metrics"
)

// Compile-time check
var _ AdmissionUseCase = (*admissionUC)(nil)

const reasonNoSession = "no_active_session"

// AdmissionUseCase answers the captive portal's per-request access question.
// It never mutates state; exhausted sessions are denied here and ended by the sweep.
type AdmissionUseCase interface {
	Admit(ctx context.Context, device model.Device, now time.Time) (*model.Decision, error)
}

type admissionUC struct {
	sessions SessionUseCase
	settings adapter.SettingsProvider
	log      *zerolog.Logger
}

func NewAdmissionUseCase(sessions SessionUseCase, settings adapter.SettingsProvider, logger *zerolog.Logger) *admissionUC {
	l := logger.With().Str("component", "AdmissionUC").Logger()
	return &admissionUC{sessions: sessions, settings: settings, log: &l}
}

func (u *admissionUC) Admit(ctx context.Context, device model.Device, now time.Time) (*model.Decision, error) {
	if device.IsZero() {
		return nil, domain.ErrInvalidDevice
	}
	s, err := u.sessions.Get(ctx, device.MAC)
	if err != nil {
		return nil, err
	}
	d := &model.Decision{Action: model.ActionAcquire, Reason: reasonNoSession}
	if s != nil {
		d.Session = s
		d.Quota = s.QuotaAt(now)
		if d.Quota.Exhausted {
			d.Reason = d.Quota.Reason
		} else {
			cur := u.settings.Current()
			d.Allowed, d.Action, d.Reason = true, model.ActionAllow, ""
			d.BandwidthUpKbps, d.BandwidthDownKbps = cur.BandwidthUpKbps, cur.BandwidthDownKbps
		}
	}
	metrics.IncAdmission(string(d.Action))
	u.log.Debug().
		Str("mac", device.MAC).
		Str("action", string(d.Action)).
		Str("reason", d.Reason).
		Msg("admission decision")
	return d, nil
}
