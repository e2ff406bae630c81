package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Pipeline stages recorded in the run index
const (
	StageIssues = "issues"
	StageJira   = "jira"
	StageClone  = "clone"
	StageMine   = "mine"
	StageEffort = "effort"
	StageDone   = "done"
)

// RunResult is the outcome of processing one repository. Stage is the last
// stage attempted; on failure Error holds the reason. IssuesError records
// issue collection failures, which do not stop the run.
type RunResult struct {
	ID          uuid.UUID `db:"id"`
	Repository  string    `db:"repository"`
	Stage       string    `db:"stage"`
	Success     bool      `db:"success"`
	GitHubITS   bool      `db:"github_its"`
	IssuesCount int       `db:"issues_count"`
	LedgerRows  int       `db:"ledger_rows"`
	IssuesError string    `db:"issues_error"`
	Error       string    `db:"error"`
	Timestamp   time.Time `db:"timestamp"`
}

// NewRunResult starts a result for repository with a fresh ID
func NewRunResult(repository string) *RunResult {
	return &RunResult{ID: uuid.New(), Repository: repository, Timestamp: time.Now().UTC()}
}

// Store defines the run index interface
type Store interface {
	// SaveRun inserts or replaces the result with the same ID
	SaveRun(ctx context.Context, run *RunResult) error
	GetRun(ctx context.Context, id uuid.UUID) (*RunResult, error)
	// ListRuns returns the newest runs first; limit <= 0 means all
	ListRuns(ctx context.Context, limit int) ([]*RunResult, error)

	// Close connection
	Close() error
}

// Open returns the store named by storeType ("sqlite" or "postgres")
func Open(storeType, localPath, postgresDSN string, logger *logrus.Entry) (Store, error) {
	switch storeType {
	case "", "sqlite":
		return NewSQLiteStore(localPath, logger)
	case "postgres":
		return NewPostgresStore(postgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", storeType)
	}
}
