package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for backup run history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateBackupRun inserts a new BackupRun and sets its ID
func (s *Store) CreateBackupRun(run *BackupRun) error {
	const query = `
		INSERT INTO backup_runs (
			project, output_path, images, volumes, files, skipped,
			total_size, encrypted, compression, sha256, status,
			error_message, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Project, run.OutputPath, run.Images, run.Volumes, run.Files,
		run.Skipped, run.TotalSize, run.Encrypted, run.Compression,
		run.SHA256, run.Status, run.ErrorMessage, run.StartTime, run.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backup run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateBackupRun updates an existing BackupRun by ID
func (s *Store) UpdateBackupRun(run *BackupRun) error {
	const query = `
		UPDATE backup_runs SET
			project = ?, output_path = ?, images = ?, volumes = ?,
			files = ?, skipped = ?, total_size = ?, encrypted = ?,
			compression = ?, sha256 = ?, status = ?, error_message = ?,
			start_time = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Project, run.OutputPath, run.Images, run.Volumes, run.Files,
		run.Skipped, run.TotalSize, run.Encrypted, run.Compression,
		run.SHA256, run.Status, run.ErrorMessage, run.StartTime, run.EndTime,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update backup run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup run %d not found", run.ID)
	}
	return nil
}

// ListBackupRuns returns recent backup runs, newest first. An empty project
// filter returns runs for every project.
func (s *Store) ListBackupRuns(project string, limit int) ([]BackupRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, project, output_path, images, volumes, files, skipped,
			total_size, encrypted, compression, sha256, status,
			COALESCE(error_message, ''), start_time, end_time
		FROM backup_runs
	`
	args := []any{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY start_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup runs: %w", err)
	}
	defer rows.Close()

	var runs []BackupRun
	for rows.Next() {
		var r BackupRun
		if err := rows.Scan(
			&r.ID, &r.Project, &r.OutputPath, &r.Images, &r.Volumes,
			&r.Files, &r.Skipped, &r.TotalSize, &r.Encrypted,
			&r.Compression, &r.SHA256, &r.Status, &r.ErrorMessage,
			&r.StartTime, &r.EndTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backup run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backup runs: %w", err)
	}
	return runs, nil
}
