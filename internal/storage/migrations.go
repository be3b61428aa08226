package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: uploads, candidates, ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS uploads (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					original_filename TEXT NOT NULL,
					stored_path TEXT NOT NULL DEFAULT '',
					file_type TEXT NOT NULL,
					source_platform TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'uploaded',
					error_detail TEXT NOT NULL DEFAULT '',
					file_size INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					completed_at DATETIME,
					deleted_at DATETIME
				)`,
				`CREATE INDEX idx_uploads_user ON uploads(user_id, created_at)`,
				`CREATE INDEX idx_uploads_status ON uploads(status)`,

				`CREATE TABLE IF NOT EXISTS candidates (
					id TEXT PRIMARY KEY,
					upload_id TEXT NOT NULL REFERENCES uploads(id),
					position INTEGER NOT NULL,
					occurred_at DATETIME NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					kind TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					counterparty TEXT NOT NULL DEFAULT '',
					reference TEXT NOT NULL DEFAULT '',
					source_platform TEXT NOT NULL DEFAULT '',
					confidence INTEGER NOT NULL DEFAULT 0,
					rejected INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					UNIQUE(upload_id, position)
				)`,
				`CREATE INDEX idx_candidates_upload ON candidates(upload_id)`,

				`CREATE TABLE IF NOT EXISTS ledger (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					upload_id TEXT NOT NULL,
					candidate_id TEXT NOT NULL UNIQUE,
					occurred_at DATETIME NOT NULL,
					committed_at DATETIME NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					kind TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					counterparty TEXT NOT NULL DEFAULT '',
					reference TEXT NOT NULL DEFAULT '',
					source_platform TEXT NOT NULL DEFAULT '',
					confidence INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_ledger_user_date ON ledger(user_id, occurred_at)`,
				`CREATE INDEX idx_ledger_upload ON ledger(upload_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Categorization jobs and AI annotation columns",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categorization_jobs (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					target_upload_id TEXT NOT NULL DEFAULT '',
					target_ids TEXT NOT NULL DEFAULT '[]',
					status TEXT NOT NULL DEFAULT 'queued',
					attempts INTEGER NOT NULL DEFAULT 0,
					summary TEXT,
					error_detail TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					started_at DATETIME,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_jobs_status ON categorization_jobs(status, created_at)`,
				`CREATE INDEX idx_jobs_user ON categorization_jobs(user_id, created_at)`,

				`ALTER TABLE candidates ADD COLUMN ai_categorized INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE candidates ADD COLUMN ai_confidence TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE candidates ADD COLUMN ai_rationale TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE ledger ADD COLUMN ai_categorized INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE ledger ADD COLUMN ai_confidence TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE ledger ADD COLUMN ai_rationale TEXT NOT NULL DEFAULT ''`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Manual verification of ledger records",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE ledger ADD COLUMN manually_verified INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE ledger ADD COLUMN verified_notes TEXT NOT NULL DEFAULT ''`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		// PRAGMA does not support placeholders.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("schema version mismatch: have %d, want %d", finalVersion, ExpectedSchemaVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version without
// applying migrations.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
