// Package gitdiff exports the line-level diff of every commit in a repository
// as JSON.
package gitdiff

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/sirupsen/logrus"
	godiff "github.com/sourcegraph/go-diff/diff"
)

// Line is one added or deleted line. LineNumber is in the new file for
// additions and in the old file for deletions.
type Line struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

// FileDiff lists the changed lines of one file
type FileDiff struct {
	Filename     string `json:"filename"`
	AddedLines   []Line `json:"added_lines"`
	DeletedLines []Line `json:"deleted_lines"`
}

// Stats summarises a commit against its first parent
type Stats struct {
	Insertions    int `json:"insertions"`
	Deletions     int `json:"deletions"`
	FilesModified int `json:"files_modified"`
}

// CommitDiff is the exported record of one commit
type CommitDiff struct {
	CommitHash         string     `json:"commit_hash"`
	PreviousCommitHash string     `json:"previous_commit_hash"`
	DiffStats          Stats      `json:"diff_stats"`
	DiffContent        []FileDiff `json:"diff_content"`
}

// Exporter walks a repository's history and builds CommitDiff records
type Exporter struct {
	logger *logrus.Entry
}

// NewExporter creates an exporter
func NewExporter(logger *logrus.Entry) *Exporter {
	return &Exporter{logger: logger}
}

// Collect returns a record for every non-root commit reachable from HEAD,
// oldest first. Merges are diffed against their first parent.
func (e *Exporter) Collect(ctx context.Context, repo *git.Repository) ([]CommitDiff, error) {
	commits, err := repo.ListCommits(ctx)
	if err != nil {
		return nil, errors.MetadataFailuref(err, "list commits")
	}

	diffs := make([]CommitDiff, 0, len(commits))
	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.KindExternal, "diff export cancelled")
		}
		parent := commit.FirstParent()
		if parent == "" {
			continue
		}

		numstat, err := repo.DiffNumstat(ctx, commit)
		if err != nil {
			return nil, errors.ProbeFailuref(err, "diff stat for %s", commit.Hash)
		}
		changes, _ := git.ParseNumstat(numstat)

		unified, err := repo.UnifiedDiff(ctx, commit)
		if err != nil {
			return nil, errors.ProbeFailuref(err, "diff for %s", commit.Hash)
		}
		content, err := ParseUnified(unified)
		if err != nil {
			return nil, errors.ProbeFailuref(err, "parse diff for %s", commit.Hash)
		}

		record := CommitDiff{
			CommitHash:         commit.Hash,
			PreviousCommitHash: parent,
			DiffStats:          Stats{FilesModified: len(changes)},
			DiffContent:        content,
		}
		for _, change := range changes {
			record.DiffStats.Insertions += change.Additions
			record.DiffStats.Deletions += change.Deletions
		}
		diffs = append(diffs, record)
	}

	e.logger.WithFields(logrus.Fields{
		"repository": repo.Path(),
		"commits":    len(diffs),
	}).Info("Collected commit diffs")
	return diffs, nil
}

// Export collects every commit diff and writes them to outputPath
func (e *Exporter) Export(ctx context.Context, repo *git.Repository, outputPath string) (int, error) {
	diffs, err := e.Collect(ctx, repo)
	if err != nil {
		return 0, err
	}
	if err := Write(outputPath, diffs); err != nil {
		return 0, err
	}
	return len(diffs), nil
}

// Write stores diffs as indented JSON, creating parent directories
func Write(outputPath string, diffs []CommitDiff) error {
	data, err := json.MarshalIndent(diffs, "", "    ")
	if err != nil {
		return errors.OutputWriteFailuref(err, "encode commit diffs")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.OutputWriteFailuref(err, "create directory for %s", outputPath)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return errors.OutputWriteFailuref(err, "write %s", outputPath)
	}
	return nil
}

// ParseUnified turns a multi-file unified diff into per-file changed lines.
// Files without hunks (binary files, pure renames, mode changes) are omitted.
func ParseUnified(unified string) ([]FileDiff, error) {
	files := []FileDiff{}
	if strings.TrimSpace(unified) == "" {
		return files, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		return nil, err
	}

	for _, fd := range fileDiffs {
		if len(fd.Hunks) == 0 {
			continue
		}

		name := cleanPath(fd.NewName)
		if name == "" || name == "/dev/null" {
			name = cleanPath(fd.OrigName)
		}
		file := FileDiff{
			Filename:     path.Base(name),
			AddedLines:   []Line{},
			DeletedLines: []Line{},
		}
		for _, hunk := range fd.Hunks {
			added, deleted := parseHunk(hunk)
			file.AddedLines = append(file.AddedLines, added...)
			file.DeletedLines = append(file.DeletedLines, deleted...)
		}
		files = append(files, file)
	}
	return files, nil
}

func parseHunk(hunk *godiff.Hunk) (added, deleted []Line) {
	oldLine := int(hunk.OrigStartLine)
	newLine := int(hunk.NewStartLine)

	for _, line := range strings.Split(strings.TrimSuffix(string(hunk.Body), "\n"), "\n") {
		if line == "" {
			oldLine++
			newLine++
			continue
		}
		switch line[0] {
		case '+':
			added = append(added, Line{LineNumber: newLine, Content: line[1:]})
			newLine++
		case '-':
			deleted = append(deleted, Line{LineNumber: oldLine, Content: line[1:]})
			oldLine++
		case ' ':
			oldLine++
			newLine++
		case '\\':
			// "\ No newline at end of file"
		}
	}
	return added, deleted
}

// cleanPath removes the a/ or b/ prefix from git diff paths
func cleanPath(p string) string {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}
