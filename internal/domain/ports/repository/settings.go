package repository

import (
	"context"

	"bytebill/internal/domain/model"
)

type SettingsRepository interface {
	// Load returns domain.ErrNotFound when no record has been saved yet.
	Load(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, s *model.Settings) error
}
