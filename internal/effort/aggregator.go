// Package effort turns a refactoring report into a per-commit effort ledger.
package effort

import (
	"context"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/ledger"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/probe"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/refminer"
	"github.com/sirupsen/logrus"
)

// Result summarises one aggregation run
type Result struct {
	ReportPath string
	LedgerPath string
	Strategy   string
	Qualifying int
	Skipped    int
	Rows       int
	Duration   time.Duration
}

// Aggregator walks the qualifying commits of a report in order and writes one
// ledger row per commit. Commits are processed strictly one at a time because
// the total-at-revision strategy moves the working copy.
type Aggregator struct {
	strategy probe.Strategy
	logger   *logrus.Entry
}

// NewAggregator creates an aggregator using strategy for every commit
func NewAggregator(strategy probe.Strategy, logger *logrus.Entry) *Aggregator {
	return &Aggregator{strategy: strategy, logger: logger}
}

// Run writes the ledger for reportPath to outputPath. A malformed report
// fails before the ledger is created. A commit whose metadata cannot be
// resolved aborts the run; rows written before it stay on disk.
func (a *Aggregator) Run(ctx context.Context, repo *git.Repository, reportPath, outputPath string) (*Result, error) {
	start := time.Now()
	result := &Result{ReportPath: reportPath, LedgerPath: outputPath, Strategy: a.strategy.Name()}

	report, err := refminer.Load(reportPath)
	if err != nil {
		return result, err
	}
	hashes := report.QualifyingCommits()
	result.Qualifying = len(hashes)
	result.Skipped = len(report.Commits) - len(hashes)
	for _, c := range report.Commits {
		if !c.Qualifies() {
			a.logger.WithField("commit", c.SHA1).Debug("No refactorings, skipping commit")
		}
	}

	a.logger.WithFields(logrus.Fields{
		"report":     reportPath,
		"repository": repo.Path(),
		"commits":    len(report.Commits),
		"qualifying": len(hashes),
		"strategy":   a.strategy.Name(),
	}).Info("Starting effort aggregation")

	writer, err := ledger.Open(outputPath)
	if err != nil {
		return result, err
	}
	defer writer.Close()

	if err := writer.WriteHeader(ledger.Columns(a.strategy.ExtraColumns())); err != nil {
		return result, err
	}

	for i, hash := range hashes {
		if err := ctx.Err(); err != nil {
			result.Rows = writer.Rows()
			return result, errors.Wrap(err, errors.KindExternal, "effort aggregation cancelled")
		}

		commit, err := repo.ResolveCommit(ctx, hash)
		if err != nil {
			result.Rows = writer.Rows()
			a.logger.WithError(err).WithFields(logrus.Fields{
				"commit":  hash,
				"written": writer.Rows(),
			}).Error("Cannot resolve commit, aborting run")
			return result, errors.MetadataFailuref(err, "resolve commit %s", hash)
		}
		if commit.IsMerge() {
			a.logger.WithFields(logrus.Fields{
				"commit":  commit.Hash,
				"parents": len(commit.Parents),
			}).Debug("Merge commit attributed to first parent")
		}

		m := a.strategy.Measure(ctx, repo, commit)
		record := ledger.Record{
			Developer:    commit.Author,
			CommitHash:   commit.Hash,
			ParentHash:   commit.FirstParent(),
			TouchedLines: m.Touched,
			CurrentLOC:   m.CurrentLOC,
			PreviousLOC:  m.PreviousLOC,
		}
		if err := writer.WriteRow(record); err != nil {
			result.Rows = writer.Rows()
			return result, err
		}

		a.logger.WithFields(logrus.Fields{
			"commit":    commit.Hash,
			"developer": commit.Author,
			"tloc":      m.Touched,
			"progress":  i + 1,
		}).Debug("Recorded commit effort")
	}

	if err := writer.Close(); err != nil {
		result.Rows = writer.Rows()
		return result, err
	}

	result.Rows = writer.Rows()
	result.Duration = time.Since(start)
	a.logger.WithFields(logrus.Fields{
		"rows":     result.Rows,
		"ledger":   outputPath,
		"duration": result.Duration,
	}).Info("Effort aggregation complete")
	return result, nil
}
