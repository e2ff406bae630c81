package refminer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/sirupsen/logrus"
)

// Runner invokes the RefactoringMiner command line tool over a whole repository
type Runner struct {
	binary    string
	outputDir string
	timeout   time.Duration
	runner    git.Runner
	logger    *logrus.Entry
	now       func() time.Time
}

// NewRunner creates a miner runner. binary is the path to the
// RefactoringMiner launcher script; reports land in outputDir.
func NewRunner(binary, outputDir string, timeout time.Duration, logger *logrus.Entry) *Runner {
	return &Runner{
		binary:    binary,
		outputDir: outputDir,
		timeout:   timeout,
		runner:    git.ExecRunner{},
		logger:    logger,
		now:       time.Now,
	}
}

// CheckPrerequisites verifies git, java and the miner binary are present
func (r *Runner) CheckPrerequisites() error {
	for _, exe := range []string{"git", "java"} {
		if err := git.RequireExecutable(exe); err != nil {
			r.logger.WithError(err).Error("Required executable missing")
			return errors.ExternalErrorf(err, "prerequisite check")
		}
		r.logger.Infof("%s is available.", exe)
	}

	if _, err := os.Stat(r.binary); err != nil {
		r.logger.WithField("path", r.binary).Error("RefactoringMiner not found")
		return errors.ExternalErrorf(err, "RefactoringMiner not found at %s", r.binary)
	}
	r.logger.WithField("path", r.binary).Info("RefactoringMiner located")
	return nil
}

// ReportPath returns where the report for repoName would be written today
func (r *Runner) ReportPath(repoName string) string {
	return filepath.Join(r.outputDir, fmt.Sprintf("%s_%s.json", repoName, r.now().Format("2006-01-02")))
}

// Mine runs RefactoringMiner over every commit of repo and returns the
// report path.
func (r *Runner) Mine(ctx context.Context, repo *git.Repository, repoName string) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", errors.OutputWriteFailuref(err, "create miner output directory %s", r.outputDir)
	}

	reportPath, err := filepath.Abs(r.ReportPath(repoName))
	if err != nil {
		return "", errors.InternalErrorf("resolve report path: %v", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.WithFields(logrus.Fields{
		"repository": repoName,
		"report":     reportPath,
	}).Info("Running RefactoringMiner")

	start := time.Now()
	if _, err := r.runner.Run(ctx, repo.Path(), r.binary, "-a", repo.Path(), "-json", reportPath); err != nil {
		return "", errors.ExternalErrorf(err, "RefactoringMiner failed for %s", repoName)
	}

	r.logger.WithFields(logrus.Fields{
		"duration": time.Since(start).Round(10 * time.Millisecond).String(),
		"report":   reportPath,
	}).Info("RefactoringMiner completed")
	return reportPath, nil
}
