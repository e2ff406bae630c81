package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements the run index using PostgreSQL, for teams sharing
// one index across machines
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Entry) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_results (
		id UUID PRIMARY KEY,
		repository TEXT NOT NULL,
		stage TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT FALSE,
		github_its BOOLEAN NOT NULL DEFAULT FALSE,
		issues_count INTEGER NOT NULL DEFAULT 0,
		ledger_rows INTEGER NOT NULL DEFAULT 0,
		issues_error TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_results_repository ON run_results(repository);
	CREATE INDEX IF NOT EXISTS idx_run_results_timestamp ON run_results(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *RunResult) error {
	query := `
		INSERT INTO run_results (id, repository, stage, success, github_its,
			issues_count, ledger_rows, issues_error, error, timestamp)
		VALUES (:id, :repository, :stage, :success, :github_its,
			:issues_count, :ledger_rows, :issues_error, :error, :timestamp)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			success = EXCLUDED.success,
			github_its = EXCLUDED.github_its,
			issues_count = EXCLUDED.issues_count,
			ledger_rows = EXCLUDED.ledger_rows,
			issues_error = EXCLUDED.issues_error,
			error = EXCLUDED.error,
			timestamp = EXCLUDED.timestamp
	`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("save run result: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"repository": run.Repository,
		"stage":      run.Stage,
	}).Debug("Saved run result")
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*RunResult, error) {
	var run RunResult
	err := s.db.GetContext(ctx, &run, `SELECT * FROM run_results WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run result: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*RunResult, error) {
	query := `SELECT * FROM run_results ORDER BY timestamp DESC, repository`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var runs []*RunResult
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list run results: %w", err)
	}
	return runs, nil
}
