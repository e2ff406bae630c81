// Package probe measures code size for the effort ledger, either by counting
// source lines at a revision or by summing a commit's diff stat.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/sirupsen/logrus"
)

// DefaultExtensions are the source file extensions the line counter considers
var DefaultExtensions = []string{
	"c", "cpp", "h", "hpp", "py", "java", "js", "rb", "go", "cs",
	"php", "swift", "ts", "rs", "kt", "scala", "pl", "sh", "ps1",
}

// CountMode selects how the counter output is reduced to one number
type CountMode string

const (
	// CountTotalRow reads the Lines field of scc's "Total" row
	CountTotalRow CountMode = "total-row"
	// CountSumFiles sums the Lines column over every per-file CSV row
	CountSumFiles CountMode = "sum-files"
)

// SourceConfig configures the line counter
type SourceConfig struct {
	Binary     string
	Extensions []string
	Mode       CountMode
	Timeout    time.Duration
}

// SourceSizeProbe counts lines of tracked source files at a revision using scc.
// The mode is fixed at construction so every measurement in a run agrees.
type SourceSizeProbe struct {
	config SourceConfig
	logger *logrus.Entry
}

// NewSourceSizeProbe creates a probe, filling in defaults
func NewSourceSizeProbe(config SourceConfig, logger *logrus.Entry) *SourceSizeProbe {
	if config.Binary == "" {
		config.Binary = "scc"
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	if config.Mode == "" {
		config.Mode = CountTotalRow
	}
	return &SourceSizeProbe{config: config, logger: logger}
}

// Mode returns the counting mode in use
func (p *SourceSizeProbe) Mode() CountMode {
	return p.config.Mode
}

// Measure checks out revision (discarding local changes) and returns the
// total line count. Any failure is logged and measured as 0.
func (p *SourceSizeProbe) Measure(ctx context.Context, repo *git.Repository, revision string) int {
	total, err := p.Snapshot(ctx, repo, revision)
	if err != nil {
		p.logger.WithError(errors.ProbeFailuref(err, "count source lines")).
			WithField("revision", revision).
			Warn("Source size probe failed, recording 0")
		return 0
	}
	return total
}

// Snapshot is Measure with checkout failures returned to the caller, wrapping
// git.ErrCheckout. A counting failure is still logged and measured as 0.
func (p *SourceSizeProbe) Snapshot(ctx context.Context, repo *git.Repository, revision string) (int, error) {
	total, err := repo.MeasureAt(ctx, revision, func(ctx context.Context) (int, error) {
		return p.count(ctx, repo)
	})
	if errors.Is(err, git.ErrCheckout) {
		return 0, err
	}
	if err != nil {
		p.logger.WithError(errors.ProbeFailuref(err, "count source lines")).
			WithField("revision", revision).
			Warn("Source size probe failed, recording 0")
		return 0, nil
	}

	p.logger.WithFields(logrus.Fields{
		"revision": revision,
		"loc":      total,
		"mode":     p.config.Mode,
	}).Debug("Counted source lines")
	return total, nil
}

func (p *SourceSizeProbe) count(ctx context.Context, repo *git.Repository) (int, error) {
	args := []string{"--no-complexity", "--by-file"}
	if p.config.Mode == CountSumFiles {
		args = append(args, "--format", "csv")
	}
	args = append(args, "--include-ext", strings.Join(p.config.Extensions, ","))

	output, err := repo.Exec(ctx, p.config.Timeout, p.config.Binary, args...)
	if err != nil {
		return 0, err
	}

	if p.config.Mode == CountSumFiles {
		return sumFileLines(output)
	}
	return parseTotalRow(output)
}

// parseTotalRow finds the "Total" row of scc's table output and returns its
// third field, the line count.
func parseTotalRow(output []byte) (int, error) {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "Total" {
			continue
		}
		lines, err := strconv.Atoi(strings.ReplaceAll(fields[2], ",", ""))
		if err != nil {
			return 0, errors.ProbeFailuref(err, "unparseable Total row %q", line)
		}
		return lines, nil
	}
	return 0, errors.ProbeFailuref(nil, "scc output has no Total row")
}

// sumFileLines sums the Lines column of scc's per-file CSV output. The column
// is located by header name. Rows with a non-numeric value are skipped.
func sumFileLines(output []byte) (int, error) {
	reader := csv.NewReader(bytes.NewReader(output))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.ProbeFailuref(err, "read scc csv header")
	}

	column := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "Lines") {
			column = i
			break
		}
	}
	if column < 0 {
		return 0, errors.ProbeFailuref(nil, "scc csv output has no Lines column: %v", header)
	}

	total := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.ProbeFailuref(err, "read scc csv row")
		}
		if column >= len(record) {
			continue
		}
		lines, err := strconv.Atoi(strings.TrimSpace(record[column]))
		if err != nil {
			continue
		}
		total += lines
	}
	return total, nil
}
