package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all available migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_voice_templates_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS voice_templates (
					user_id TEXT NOT NULL,
					extractor_version TEXT NOT NULL,
					version INTEGER NOT NULL,
					embedding BLOB NOT NULL,
					quality REAL NOT NULL,
					active BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, extractor_version, version)
				);

				CREATE INDEX IF NOT EXISTS idx_voice_templates_active
					ON voice_templates (user_id, extractor_version, active);
			`,
		},
		{
			Version: 2,
			Name:    "create_verification_attempts_table",
			SQL: `
				-- Append-only audit log. Rows are never updated or deleted
				-- except by the retention prune.
				CREATE TABLE IF NOT EXISTS verification_attempts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					timestamp DATETIME NOT NULL,
					score REAL,
					decision TEXT NOT NULL,
					reason TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_attempts_user_time
					ON verification_attempts (user_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_attempts_timestamp
					ON verification_attempts (timestamp);
			`,
		},
		{
			Version: 3,
			Name:    "create_auth_tokens_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS auth_tokens (
					token_id TEXT PRIMARY KEY,
					client_name TEXT NOT NULL,
					subject TEXT,
					trusted BOOLEAN NOT NULL DEFAULT 0,
					hashed_token TEXT NOT NULL UNIQUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_used_at DATETIME,
					is_active BOOLEAN DEFAULT 1
				);

				CREATE INDEX IF NOT EXISTS idx_auth_tokens_hashed_token
					ON auth_tokens (hashed_token);
				CREATE INDEX IF NOT EXISTS idx_auth_tokens_client_name
					ON auth_tokens (client_name);
			`,
		},
	}
}

// RunMigrations applies all pending migrations to the database
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		log.Printf("[Database] Applied migration %d: %s", m.Version, m.Name)
	}
	return nil
}
