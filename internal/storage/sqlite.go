package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements the run index using SQLite (the default)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Entry) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL lets the CLI read the index while a run is writing it
	db.Exec("PRAGMA journal_mode = WAL")
	db.Exec("PRAGMA busy_timeout = 5000")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_results (
		id TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		stage TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT 0,
		github_its BOOLEAN NOT NULL DEFAULT 0,
		issues_count INTEGER NOT NULL DEFAULT 0,
		ledger_rows INTEGER NOT NULL DEFAULT 0,
		issues_error TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_results_repository ON run_results(repository);
	CREATE INDEX IF NOT EXISTS idx_run_results_timestamp ON run_results(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunResult) error {
	query := `
		INSERT OR REPLACE INTO run_results (id, repository, stage, success, github_its,
			issues_count, ledger_rows, issues_error, error, timestamp)
		VALUES (:id, :repository, :stage, :success, :github_its,
			:issues_count, :ledger_rows, :issues_error, :error, :timestamp)
	`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("save run result: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"repository": run.Repository,
		"stage":      run.Stage,
		"success":    run.Success,
	}).Debug("Saved run result")
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*RunResult, error) {
	var run RunResult
	err := s.db.GetContext(ctx, &run, `SELECT * FROM run_results WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run result: %w", err)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunResult, error) {
	query := `SELECT * FROM run_results ORDER BY timestamp DESC, repository`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var runs []*RunResult
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list run results: %w", err)
	}
	return runs, nil
}
