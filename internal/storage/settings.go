package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

// SettingEngineKind holds the persisted engine selection.
const SettingEngineKind = "engine.kind"

// GetSetting returns the stored value for key, or common.ErrNotFound.
func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(key, "key"); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key.
func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// EngineKind returns the persisted engine name.
func (s *SQLiteStorage) EngineKind(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, SettingEngineKind)
}

// SetEngineKind persists the engine name.
func (s *SQLiteStorage) SetEngineKind(ctx context.Context, kind string) error {
	if err := validateString(kind, "kind"); err != nil {
		return err
	}
	return s.SetSetting(ctx, SettingEngineKind, kind)
}
