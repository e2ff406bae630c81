package probe

import (
	"context"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/sirupsen/logrus"
)

// DiffSizeProbe sums lines added and deleted by a single commit against its
// first parent. It reads the object database only and never changes the
// checked-out revision.
type DiffSizeProbe struct {
	logger *logrus.Entry
}

// NewDiffSizeProbe creates a diff probe
func NewDiffSizeProbe(logger *logrus.Entry) *DiffSizeProbe {
	return &DiffSizeProbe{logger: logger}
}

// Measure returns added+deleted lines for commit. Binary and malformed rows
// are skipped; an invocation failure is logged and measured as 0.
func (p *DiffSizeProbe) Measure(ctx context.Context, repo *git.Repository, commit git.Commit) int {
	output, err := repo.DiffNumstat(ctx, commit)
	if err != nil {
		p.logger.WithError(errors.ProbeFailuref(err, "diff stat")).
			WithField("commit", commit.Hash).
			Warn("Diff size probe failed, recording 0")
		return 0
	}

	changes, skipped := git.ParseNumstat(output)
	for _, line := range skipped {
		p.logger.WithField("line", line).Debug("Skipping malformed numstat line")
	}

	touched := 0
	for _, change := range changes {
		if change.IsBinary {
			p.logger.WithField("path", change.Path).Debug("Skipping binary file in diff")
			continue
		}
		touched += change.Additions + change.Deletions
	}
	return touched
}
