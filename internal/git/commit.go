package git

import (
	"context"
	"fmt"
	"strings"
)

// Commit is the metadata the effort pipeline needs for one commit
type Commit struct {
	Hash    string
	Parents []string
	Author  string
}

// FirstParent returns the first parent hash, or "" for a root commit.
// Merge commits are attributed to their first parent only.
func (c Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// IsMerge reports whether the commit has more than one parent
func (c Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// ResolveCommit looks up hash, parents and author name of rev
func (r *Repository) ResolveCommit(ctx context.Context, rev string) (Commit, error) {
	output, err := r.Git(ctx, "log", "-n", "1", "--pretty=format:%H%x00%P%x00%an", rev, "--")
	if err != nil {
		return Commit{}, fmt.Errorf("git log for commit %s: %w", rev, err)
	}

	parts := strings.SplitN(strings.TrimRight(string(output), "\n"), "\x00", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Commit{}, fmt.Errorf("unexpected git log output for commit %s: %q", rev, string(output))
	}

	return Commit{
		Hash:    parts[0],
		Parents: strings.Fields(parts[1]),
		Author:  parts[2],
	}, nil
}

// ListCommits returns every commit reachable from HEAD, oldest first
func (r *Repository) ListCommits(ctx context.Context) ([]Commit, error) {
	output, err := r.Git(ctx, "log", "--reverse", "--pretty=format:%H%x00%P%x00%an")
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}

	var commits []Commit
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 3)
		if len(parts) != 3 {
			continue // Skip malformed lines
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Parents: strings.Fields(parts[1]),
			Author:  parts[2],
		})
	}
	return commits, nil
}

// UnifiedDiff returns the zero-context diff of commit against its first
// parent. Root commits are diffed against the empty tree.
func (r *Repository) UnifiedDiff(ctx context.Context, commit Commit) (string, error) {
	var (
		output []byte
		err    error
	)
	if parent := commit.FirstParent(); parent != "" {
		output, err = r.Git(ctx, "diff", "--unified=0", "--no-color", "--no-ext-diff", parent, commit.Hash)
	} else {
		output, err = r.Git(ctx, "show", "--unified=0", "--no-color", "--no-ext-diff", "--format=", commit.Hash)
	}
	if err != nil {
		return "", fmt.Errorf("diff for commit %s: %w", commit.Hash, err)
	}
	return string(output), nil
}
