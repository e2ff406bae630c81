// Package pipeline runs the whole per-repository data collection: issue
// download, clone, refactoring mining and effort aggregation.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/effort"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/issues"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// IssueCollector downloads GitHub issues of one repository
type IssueCollector interface {
	Collect(ctx context.Context, repoURL string) (*issues.Outcome, error)
}

// JiraCollector downloads JIRA bugs of the project matching one repository
type JiraCollector interface {
	Collect(ctx context.Context, repoURL string) (*issues.JiraOutcome, error)
}

// Miner produces a refactoring report for a cloned repository
type Miner interface {
	Mine(ctx context.Context, repo *git.Repository, repoName string) (string, error)
}

// EffortRunner writes the effort ledger of a mined repository
type EffortRunner interface {
	Run(ctx context.Context, repo *git.Repository, reportPath, outputPath string) (*effort.Result, error)
}

// Cloner produces an owned working copy of a repository URL
type Cloner func(ctx context.Context, url string) (*git.Repository, error)

// Options controls the orchestrator
type Options struct {
	EffortOutputDir string
	MaxRepositories int // 0 = all
	Workers         int
	KeepClones      bool
}

// Orchestrator coordinates the per-repository pipeline
type Orchestrator struct {
	issues  IssueCollector
	jira    JiraCollector
	clone   Cloner
	miner   Miner
	effort  EffortRunner
	store   storage.Store
	options Options
	logger  *logrus.Entry
}

// NewOrchestrator creates a new orchestrator. issues and jira may be nil to
// skip those stages.
func NewOrchestrator(
	issueCollector IssueCollector,
	jira JiraCollector,
	clone Cloner,
	miner Miner,
	effortRunner EffortRunner,
	store storage.Store,
	options Options,
	logger *logrus.Entry,
) *Orchestrator {
	if options.Workers <= 0 {
		options.Workers = 1
	}
	return &Orchestrator{
		issues:  issueCollector,
		jira:    jira,
		clone:   clone,
		miner:   miner,
		effort:  effortRunner,
		store:   store,
		options: options,
		logger:  logger,
	}
}

// Summary contains the results of a pipeline run
type Summary struct {
	Runs      []*storage.RunResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// LedgerPath returns where the effort ledger of repoName is written
func (o *Orchestrator) LedgerPath(repoName string) string {
	return filepath.Join(o.options.EffortOutputDir, fmt.Sprintf("developer_effort_%s.csv", repoName))
}

// Run processes repoURLs, at most MaxRepositories of them. A repository that
// fails at any stage is recorded and the run moves on; only cancellation or
// a fatal error stops the whole run.
func (o *Orchestrator) Run(ctx context.Context, repoURLs []string) (*Summary, error) {
	start := time.Now()
	if o.options.MaxRepositories > 0 && len(repoURLs) > o.options.MaxRepositories {
		repoURLs = repoURLs[:o.options.MaxRepositories]
	}

	o.logger.WithFields(logrus.Fields{
		"repositories": len(repoURLs),
		"workers":      o.options.Workers,
	}).Info("Starting pipeline run")

	runs := make([]*storage.RunResult, len(repoURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.options.Workers)
	for i, repoURL := range repoURLs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run, err := o.ProcessRepository(gctx, repoURL)
			runs[i] = run
			if !errors.ContinuesPipeline(err) {
				return err
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	summary := &Summary{Duration: time.Since(start)}
	for _, run := range runs {
		if run == nil {
			continue
		}
		summary.Runs = append(summary.Runs, run)
		if run.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	o.logger.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"duration":  summary.Duration.String(),
	}).Info("Pipeline run completed")
	return summary, err
}

// ProcessRepository runs every stage for one repository and records the
// outcome in the run index. The returned error is the stage failure, if any.
func (o *Orchestrator) ProcessRepository(ctx context.Context, repoURL string) (*storage.RunResult, error) {
	name := git.RepoName(repoURL)
	run := storage.NewRunResult(name)
	logger := o.logger.WithFields(logrus.Fields{"repository": name, "run_id": run.ID.String()})

	err := o.process(ctx, repoURL, name, run, logger)
	if err != nil {
		run.Error = err.Error()
		logger.WithError(err).WithField("stage", run.Stage).Error("Repository failed")
	} else {
		run.Stage = storage.StageDone
		run.Success = true
		logger.WithField("ledger_rows", run.LedgerRows).Info("Repository processed")
	}

	if o.store != nil {
		if saveErr := o.store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
			logger.WithError(saveErr).Warn("Failed to record run result")
		}
	}
	return run, err
}

func (o *Orchestrator) process(ctx context.Context, repoURL, name string, run *storage.RunResult, logger *logrus.Entry) error {
	// Phase 1: issue trackers. A tracker failure is recorded on the run and
	// the repository still goes through clone, mine and effort.
	if o.issues != nil {
		run.Stage = storage.StageIssues
		outcome, err := o.issues.Collect(ctx, repoURL)
		if err != nil {
			recordIssuesError(run, storage.StageIssues, err, logger)
		} else {
			run.GitHubITS = outcome.GitHubITS
			run.IssuesCount = outcome.IssuesCount
		}
	}
	if o.jira != nil {
		run.Stage = storage.StageJira
		outcome, err := o.jira.Collect(ctx, repoURL)
		if err != nil {
			recordIssuesError(run, storage.StageJira, err, logger)
		} else {
			run.IssuesCount += outcome.IssuesCount
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 2: clone
	run.Stage = storage.StageClone
	repo, err := o.clone(ctx, repoURL)
	if err != nil {
		return errors.ExternalErrorf(err, "clone %s", repoURL)
	}
	defer func() {
		if o.options.KeepClones {
			logger.WithField("path", repo.Path()).Info("Keeping clone")
			return
		}
		if err := repo.Remove(); err != nil {
			logger.WithError(err).Warn("Failed to remove clone")
		}
	}()

	// Phase 3: mine refactorings
	run.Stage = storage.StageMine
	reportPath, err := o.miner.Mine(ctx, repo, name)
	if err != nil {
		return err
	}

	// Phase 4: effort ledger
	run.Stage = storage.StageEffort
	result, err := o.effort.Run(ctx, repo, reportPath, o.LedgerPath(name))
	if result != nil {
		run.LedgerRows = result.Rows
	}
	return err
}

func recordIssuesError(run *storage.RunResult, stage string, err error, logger *logrus.Entry) {
	logger.WithError(err).WithField("stage", stage).Warn("Issue collection failed, continuing without it")
	msg := stage + ": " + err.Error()
	if run.IssuesError != "" {
		msg = run.IssuesError + "; " + msg
	}
	run.IssuesError = msg
}
