// File: internal/usecase/settings_uc.go
package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/domain/ports/repository"
)

// Compile-time check
var (
	_ SettingsUseCase          = (*settingsUC)(nil)
	_ adapter.SettingsProvider = (*settingsUC)(nil)
)

// SettingsUseCase holds the operator settings record. Readers get an immutable
// snapshot; updates replace it whole.
type SettingsUseCase interface {
	Current() model.Settings
	// Load reads the persisted record, seeding it from defaults on first start.
	Load(ctx context.Context, defaults model.Settings, now time.Time) (model.Settings, error)
	// Update validates, persists and publishes a new record.
	Update(ctx context.Context, s model.Settings, now time.Time) (model.Settings, error)
}

type settingsUC struct {
	repo    repository.SettingsRepository
	current atomic.Pointer[model.Settings]
	log     *zerolog.Logger
}

func NewSettingsUseCase(repo repository.SettingsRepository, logger *zerolog.Logger) *settingsUC {
	l := logger.With().Str("component", "SettingsUC").Logger()
	u := &settingsUC{repo: repo, log: &l}
	def := model.DefaultSettings()
	u.current.Store(&def)
	return u
}

func (u *settingsUC) Current() model.Settings { return *u.current.Load() }

func (u *settingsUC) Load(ctx context.Context, defaults model.Settings, now time.Time) (model.Settings, error) {
	s, err := u.repo.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return u.Update(ctx, defaults, now)
	}
	if err != nil {
		return model.Settings{}, err
	}
	u.current.Store(s)
	return *s, nil
}

func (u *settingsUC) Update(ctx context.Context, s model.Settings, now time.Time) (model.Settings, error) {
	if !s.Valid() {
		return model.Settings{}, domain.ErrInvalidArgument
	}
	s.UpdatedAt = now.UTC()
	if err := u.repo.Save(ctx, &s); err != nil {
		return model.Settings{}, err
	}
	u.current.Store(&s)
	u.log.Info().
		Str("company", s.CompanyName).
		Int("up_kbps", s.BandwidthUpKbps).
		Int("down_kbps", s.BandwidthDownKbps).
		Msg("settings updated")
	return s, nil
}
