//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/usecase"
)

func TestSettingsUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds defaults on first load", func(t *testing.T) {
		repo := &MockSettingsRepo{}
		uc := usecase.NewSettingsUseCase(repo, newTestLogger())
		def := model.DefaultSettings()
		def.CompanyName = "Acme WiFi"

		got, err := uc.Load(ctx, def, t0)

		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.CompanyName != "Acme WiFi" || uc.Current().CompanyName != "Acme WiFi" {
			t.Errorf("unexpected settings %+v", got)
		}
		if saved, _ := repo.Load(ctx); saved == nil || !saved.UpdatedAt.Equal(t0) {
			t.Errorf("expected defaults persisted, got %+v", saved)
		}
	})

	t.Run("prefers the persisted record", func(t *testing.T) {
		repo := &MockSettingsRepo{}
		stored := model.DefaultSettings()
		stored.SupportPhone = "0700000000"
		_ = repo.Save(ctx, &stored)
		uc := usecase.NewSettingsUseCase(repo, newTestLogger())

		got, err := uc.Load(ctx, model.DefaultSettings(), t0)

		if err != nil || got.SupportPhone != "0700000000" {
			t.Fatalf("expected stored record, got %+v (%v)", got, err)
		}
	})

	t.Run("update validates and replaces the snapshot", func(t *testing.T) {
		uc := usecase.NewSettingsUseCase(&MockSettingsRepo{}, newTestLogger())
		before := uc.Current()
		next := before
		next.BandwidthDownKbps = 20480

		if _, err := uc.Update(ctx, next, t0); err != nil {
			t.Fatalf("Update: %v", err)
		}
		bad := next
		bad.BandwidthUpKbps = -1
		_, err := uc.Update(ctx, bad, t0)

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if uc.Current().BandwidthDownKbps != 20480 || before.BandwidthDownKbps == 20480 {
			t.Errorf("snapshot not replaced correctly: %+v", uc.Current())
		}
	})
}
