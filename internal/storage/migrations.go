package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS receipts (
					id TEXT PRIMARY KEY,
					engine TEXT NOT NULL,
					status TEXT NOT NULL,
					total_confidence REAL DEFAULT 0,
					merchant TEXT,
					receipt_type TEXT NOT NULL DEFAULT 'unknown',
					language TEXT,
					subtotal TEXT,
					total TEXT,
					created_at DATETIME NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_receipts_created_at ON receipts(created_at)`,

				`CREATE TABLE IF NOT EXISTS receipt_items (
					id TEXT PRIMARY KEY,
					receipt_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					original_text TEXT,
					price TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence REAL DEFAULT 0,
					method TEXT NOT NULL,
					reasoning TEXT,
					corrected_by TEXT,
					corrected_at DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_receipt_items_receipt_id ON receipt_items(receipt_id, position)`,

				`CREATE TABLE IF NOT EXISTS validation_issues (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					receipt_id TEXT NOT NULL,
					type TEXT NOT NULL,
					severity TEXT NOT NULL,
					message TEXT NOT NULL,
					affected_item_ids TEXT,
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_validation_issues_receipt_id ON validation_issues(receipt_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add correction history for auditing",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS item_corrections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					receipt_id TEXT NOT NULL,
					item_id TEXT NOT NULL,
					from_category TEXT NOT NULL,
					to_category TEXT NOT NULL,
					corrected_by TEXT,
					corrected_at DATETIME NOT NULL,
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_item_corrections_receipt_id ON item_corrections(receipt_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Default engine selection",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
				SettingEngineKind, "chain")
			return err
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
