package probe

import (
	"context"
	"fmt"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
)

// Strategy names accepted by NewStrategy
const (
	StrategyDelta = "delta"
	StrategyTotal = "total"
)

// Measurement is the size result for one commit
type Measurement struct {
	Touched     int
	CurrentLOC  *int
	PreviousLOC *int
}

// Strategy turns a resolved commit into a Measurement. The implementation is
// chosen once per run.
type Strategy interface {
	Name() string
	// ExtraColumns lists ledger columns beyond the common four
	ExtraColumns() []string
	Measure(ctx context.Context, repo *git.Repository, commit git.Commit) Measurement
}

// DeltaForCommit uses the commit's own diff stat
type DeltaForCommit struct {
	Probe *DiffSizeProbe
}

func (s DeltaForCommit) Name() string { return StrategyDelta }

func (s DeltaForCommit) ExtraColumns() []string { return nil }

func (s DeltaForCommit) Measure(ctx context.Context, repo *git.Repository, commit git.Commit) Measurement {
	return Measurement{Touched: s.Probe.Measure(ctx, repo, commit)}
}

// TotalAtRevision counts source lines at the commit and at its first parent
// and reports the absolute difference. It needs two checkouts per commit and
// leaves the working copy at the parent. If either checkout fails the commit
// is measured as zero on both sides.
type TotalAtRevision struct {
	Probe *SourceSizeProbe
}

func (s TotalAtRevision) Name() string { return StrategyTotal }

func (s TotalAtRevision) ExtraColumns() []string { return []string{"Current LOC", "Previous LOC"} }

func (s TotalAtRevision) Measure(ctx context.Context, repo *git.Repository, commit git.Commit) Measurement {
	current, err := s.Probe.Snapshot(ctx, repo, commit.Hash)

	// A root commit grows from an empty tree.
	previous := 0
	if parent := commit.FirstParent(); err == nil && parent != "" {
		previous, err = s.Probe.Snapshot(ctx, repo, parent)
	}
	if err != nil {
		s.Probe.logger.WithError(errors.ProbeFailuref(err, "checkout for line count")).
			WithField("commit", commit.Hash).
			Warn("Checkout failed, recording 0 lines on both sides")
		current, previous = 0, 0
	}

	touched := current - previous
	if touched < 0 {
		touched = -touched
	}
	return Measurement{Touched: touched, CurrentLOC: &current, PreviousLOC: &previous}
}

// NewStrategy builds the named strategy from its probes
func NewStrategy(name string, diff *DiffSizeProbe, source *SourceSizeProbe) (Strategy, error) {
	switch name {
	case "", StrategyDelta:
		return DeltaForCommit{Probe: diff}, nil
	case StrategyTotal:
		return TotalAtRevision{Probe: source}, nil
	default:
		return nil, fmt.Errorf("unknown size strategy %q (want %q or %q)", name, StrategyDelta, StrategyTotal)
	}
}
