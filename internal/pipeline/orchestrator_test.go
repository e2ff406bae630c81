package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/effort"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git/gittest"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/issues"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/logging"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/probe"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	runs []*storage.RunResult
}

func (s *memoryStore) SaveRun(_ context.Context, run *storage.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs = append(s.runs, &copied)
	return nil
}

func (s *memoryStore) GetRun(_ context.Context, id uuid.UUID) (*storage.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryStore) ListRuns(_ context.Context, _ int) ([]*storage.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, nil
}

func (s *memoryStore) Close() error { return nil }

type fakeIssues struct {
	fail map[string]bool
}

func (f fakeIssues) Collect(_ context.Context, repoURL string) (*issues.Outcome, error) {
	name := git.RepoName(repoURL)
	if f.fail[name] {
		return &issues.Outcome{Repository: name}, errors.ExternalErrorf(nil, "GitHub unavailable")
	}
	return &issues.Outcome{Repository: name, GitHubITS: true, IssuesCount: 4}, nil
}

type fakeJira struct{}

func (fakeJira) Collect(_ context.Context, repoURL string) (*issues.JiraOutcome, error) {
	return &issues.JiraOutcome{Repository: git.RepoName(repoURL), Project: "demo", IssuesCount: 2}, nil
}

// reportMiner writes a report marking every non-root commit as refactored
type reportMiner struct {
	dir string
}

func (m reportMiner) Mine(ctx context.Context, repo *git.Repository, repoName string) (string, error) {
	commits, err := repo.ListCommits(ctx)
	if err != nil {
		return "", err
	}
	type entry struct {
		SHA1         string              `json:"sha1"`
		Refactorings []map[string]string `json:"refactorings"`
	}
	report := struct {
		Commits []entry `json:"commits"`
	}{Commits: []entry{}}
	for _, c := range commits {
		if c.FirstParent() == "" {
			continue
		}
		report.Commits = append(report.Commits, entry{
			SHA1:         c.Hash,
			Refactorings: []map[string]string{{"type": "Rename Method"}},
		})
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	path := filepath.Join(m.dir, repoName+".json")
	return path, os.WriteFile(path, data, 0644)
}

// sourceRepo builds a local origin with one root commit and two edits
func sourceRepo(t *testing.T, name string) string {
	t.Helper()
	scratch := gittest.New(t)
	scratch.Write("Main.java", "class Main {}\n")
	scratch.Commit("root", "Alice")
	scratch.Write("Main.java", "class Main {\n  int a;\n}\n")
	scratch.Commit("add field", "Bob")
	scratch.Write("Util.java", "class Util {}\n")
	scratch.Commit("add util", "Carol")

	// the last path segment is the repository name
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Rename(scratch.Dir, dir))
	return dir
}

func newTestOrchestrator(t *testing.T, issueCollector IssueCollector, store storage.Store, options Options) *Orchestrator {
	t.Helper()
	logger := logging.Discard()
	strategy, err := probe.NewStrategy(probe.StrategyDelta, probe.NewDiffSizeProbe(logger), nil)
	require.NoError(t, err)

	cloner := func(ctx context.Context, url string) (*git.Repository, error) {
		return git.Clone(ctx, url, git.WithLogger(logger))
	}
	return NewOrchestrator(
		issueCollector,
		fakeJira{},
		cloner,
		reportMiner{dir: t.TempDir()},
		effort.NewAggregator(strategy, logger),
		store,
		options,
		logger,
	)
}

func TestRunProcessesEveryRepository(t *testing.T) {
	alpha := sourceRepo(t, "alpha")
	beta := sourceRepo(t, "beta")
	out := t.TempDir()
	store := &memoryStore{}

	o := newTestOrchestrator(t, fakeIssues{}, store, Options{EffortOutputDir: out, Workers: 2})
	summary, err := o.Run(context.Background(), []string{alpha, beta})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, store.runs, 2)
	for _, run := range store.runs {
		assert.True(t, run.Success)
		assert.Equal(t, storage.StageDone, run.Stage)
		assert.True(t, run.GitHubITS)
		assert.Equal(t, 6, run.IssuesCount)
		assert.Equal(t, 2, run.LedgerRows)
		assert.NotEqual(t, uuid.Nil, run.ID)
	}

	for _, name := range []string{"alpha", "beta"} {
		data, err := os.ReadFile(filepath.Join(out, "developer_effort_"+name+".csv"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Bob")
		assert.Contains(t, string(data), "Carol")
	}
}

func TestRunContinuesAfterIssueTrackerFailure(t *testing.T) {
	alpha := sourceRepo(t, "alpha")
	beta := sourceRepo(t, "beta")
	store := &memoryStore{}
	out := t.TempDir()

	o := newTestOrchestrator(t, fakeIssues{fail: map[string]bool{"alpha": true}}, store,
		Options{EffortOutputDir: out})
	summary, err := o.Run(context.Background(), []string{alpha, beta})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, summary.Runs, 2)
	degraded := summary.Runs[0]
	assert.Equal(t, "alpha", degraded.Repository)
	assert.True(t, degraded.Success)
	assert.Equal(t, storage.StageDone, degraded.Stage)
	assert.Empty(t, degraded.Error)
	assert.Contains(t, degraded.IssuesError, storage.StageIssues+": ")
	assert.Contains(t, degraded.IssuesError, "GitHub unavailable")
	assert.Positive(t, degraded.LedgerRows)
	assert.FileExists(t, filepath.Join(out, "developer_effort_alpha.csv"))

	assert.True(t, summary.Runs[1].Success)
	assert.Empty(t, summary.Runs[1].IssuesError)
}

func TestRunRecordsCloneFailure(t *testing.T) {
	store := &memoryStore{}
	o := newTestOrchestrator(t, nil, store, Options{EffortOutputDir: t.TempDir()})

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	summary, err := o.Run(context.Background(), []string{missing})
	require.NoError(t, err)
	require.Len(t, store.runs, 1)
	assert.Equal(t, storage.StageClone, store.runs[0].Stage)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunHonoursMaxRepositories(t *testing.T) {
	alpha := sourceRepo(t, "alpha")
	store := &memoryStore{}

	o := newTestOrchestrator(t, nil, store, Options{EffortOutputDir: t.TempDir(), MaxRepositories: 1})
	summary, err := o.Run(context.Background(), []string{alpha, "https://github.com/example/never"})
	require.NoError(t, err)
	assert.Len(t, summary.Runs, 1)
	assert.Len(t, store.runs, 1)
}

func TestLedgerPath(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, nil, nil, Options{EffortOutputDir: "effort_output"}, logging.Discard())
	assert.Equal(t, filepath.Join("effort_output", "developer_effort_kafka.csv"), o.LedgerPath("kafka"))
}
