// Package sqlite keeps the operator settings record in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*SettingsStore)(nil)

// SettingsStore persists exactly one settings row.
type SettingsStore struct {
	db *sql.DB
}

// Open opens (or creates) the settings database at path.
func Open(path string) (*SettingsStore, error) {
	path = filepath.Clean(path)
	if strings.TrimSpace(path) == "" || path == "." {
		return nil, fmt.Errorf("settings path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SettingsStore{db: db}
	if err := s.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("close settings db after schema init failure: %w", closeErr))
		}
		return nil, err
	}
	return s, nil
}

func (s *SettingsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		company_name TEXT NOT NULL,
		portal_dns TEXT NOT NULL,
		support_phone TEXT NOT NULL,
		bandwidth_up_kbps INTEGER NOT NULL,
		bandwidth_down_kbps INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init settings schema: %w", err)
	}
	return nil
}

func (s *SettingsStore) Load(ctx context.Context) (*model.Settings, error) {
	const q = `SELECT company_name, portal_dns, support_phone, bandwidth_up_kbps, bandwidth_down_kbps, updated_at FROM settings WHERE id = 1`
	var (
		out     model.Settings
		updated int64
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&out.CompanyName, &out.PortalDNS, &out.SupportPhone, &out.BandwidthUpKbps, &out.BandwidthDownKbps, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	out.UpdatedAt = time.Unix(0, updated).UTC()
	return &out, nil
}

func (s *SettingsStore) Save(ctx context.Context, st *model.Settings) error {
	const q = `
	INSERT INTO settings (id, company_name, portal_dns, support_phone, bandwidth_up_kbps, bandwidth_down_kbps, updated_at)
	VALUES (1, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		company_name = excluded.company_name,
		portal_dns = excluded.portal_dns,
		support_phone = excluded.support_phone,
		bandwidth_up_kbps = excluded.bandwidth_up_kbps,
		bandwidth_down_kbps = excluded.bandwidth_down_kbps,
		updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, q, st.CompanyName, st.PortalDNS, st.SupportPhone, st.BandwidthUpKbps, st.BandwidthDownKbps, st.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func (s *SettingsStore) Close() error { return s.db.Close() }
