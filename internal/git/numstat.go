package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FileChange represents one numstat row
type FileChange struct {
	Path      string
	Additions int
	Deletions int
	IsBinary  bool
}

// ParseNumstat parses "added<TAB>deleted<TAB>path" rows. Binary files, which
// git reports as "-<TAB>-<TAB>path", come back with IsBinary set and zero
// counts. Rows that cannot be parsed are returned in skipped.
func ParseNumstat(output string) (changes []FileChange, skipped []string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			skipped = append(skipped, line)
			continue
		}

		if parts[0] == "-" && parts[1] == "-" {
			changes = append(changes, FileChange{Path: parts[2], IsBinary: true})
			continue
		}

		additions, err := strconv.Atoi(parts[0])
		if err != nil {
			skipped = append(skipped, line)
			continue
		}
		deletions, err := strconv.Atoi(parts[1])
		if err != nil {
			skipped = append(skipped, line)
			continue
		}

		changes = append(changes, FileChange{
			Path:      parts[2],
			Additions: additions,
			Deletions: deletions,
		})
	}
	return changes, skipped
}

// DiffNumstat returns the raw numstat of commit against its first parent,
// without touching the checked-out revision. Root commits use git show.
func (r *Repository) DiffNumstat(ctx context.Context, commit Commit) (string, error) {
	var (
		output []byte
		err    error
	)
	if parent := commit.FirstParent(); parent != "" {
		output, err = r.Git(ctx, "diff", "--numstat", "--no-color", "--no-ext-diff", parent, commit.Hash)
	} else {
		output, err = r.Git(ctx, "show", "--numstat", "--no-color", "--no-ext-diff", "--format=", commit.Hash)
	}
	if err != nil {
		return "", fmt.Errorf("numstat for commit %s: %w", commit.Hash, err)
	}
	return string(output), nil
}
