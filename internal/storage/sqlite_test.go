package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index", "runs.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := NewRunResult("https://github.com/apache/commons-io")
	run.Stage = StageEffort
	run.GitHubITS = true
	run.IssuesCount = 42
	run.LedgerRows = 7
	run.IssuesError = "jira: project lookup failed"
	run.Success = true
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Repository, got.Repository)
	assert.True(t, got.Success)
	assert.True(t, got.GitHubITS)
	assert.Equal(t, 42, got.IssuesCount)
	assert.Equal(t, 7, got.LedgerRows)
	assert.Equal(t, "jira: project lookup failed", got.IssuesError)
	assert.WithinDuration(t, run.Timestamp, got.Timestamp, time.Second)

	_, err = store.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreSaveReplacesSameID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := NewRunResult("https://github.com/apache/kafka")
	run.Stage = StageClone
	require.NoError(t, store.SaveRun(ctx, run))

	run.Stage = StageMine
	run.Error = "RefactoringMiner exited with status 1"
	require.NoError(t, store.SaveRun(ctx, run))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StageMine, runs[0].Stage)
	assert.False(t, runs[0].Success)
	assert.Equal(t, run.Error, runs[0].Error)
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		run := NewRunResult(name)
		run.Stage = StageDone
		run.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.SaveRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Repository)
	assert.Equal(t, "b", runs[1].Repository)
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open("bolt", "", "", logging.Discard())
	assert.Error(t, err)

	store, err := Open("sqlite", filepath.Join(t.TempDir(), "runs.db"), "", logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
