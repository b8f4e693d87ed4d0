package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	// Create migrations table if it doesn't exist
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get the current schema version
	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	// Define all migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE backup_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					project TEXT NOT NULL,
					output_path TEXT NOT NULL,
					images INTEGER DEFAULT 0,
					volumes INTEGER DEFAULT 0,
					files INTEGER DEFAULT 0,
					skipped INTEGER DEFAULT 0,
					total_size INTEGER DEFAULT 0,
					encrypted INTEGER DEFAULT 0,
					compression TEXT DEFAULT 'gzip',
					sha256 TEXT,
					status TEXT DEFAULT 'running',
					error_message TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME
				);

				CREATE INDEX idx_backup_runs_project ON backup_runs(project);
				CREATE INDEX idx_backup_runs_start_time ON backup_runs(start_time);
			`,
		},
	}

	// Apply pending migrations in order
	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		s.logger.Info("applied migration", "version", m.version)
	}

	return nil
}
