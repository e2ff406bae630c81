// Package gittest builds throw-away git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Repo is a scratch repository rooted in a test temp dir
type Repo struct {
	t   *testing.T
	Dir string
}

// New initialises an empty repository on branch main. The test is skipped
// when git is not installed.
func New(t *testing.T) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	r := &Repo{t: t, Dir: t.TempDir()}
	r.Git("init", "--quiet")
	r.Git("symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("config", "user.email", "test@example.com")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs a git command and returns trimmed stdout, failing the test on error
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Write creates or replaces a file relative to the repository root
func (r *Repo) Write(path, content string) {
	r.WriteBytes(path, []byte(content))
}

// WriteBytes creates or replaces a file with raw content
func (r *Repo) WriteBytes(path string, content []byte) {
	r.t.Helper()
	full := filepath.Join(r.Dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		r.t.Fatal(err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		r.t.Fatal(err)
	}
}

// Remove deletes a tracked file
func (r *Repo) Remove(path string) {
	r.t.Helper()
	r.Git("rm", "--quiet", path)
}

// Commit stages everything and commits as author, returning the new hash
func (r *Repo) Commit(message, author string) string {
	r.t.Helper()
	r.Git("add", "--all")
	r.Git("-c", "user.name="+author, "commit", "--quiet", "--allow-empty", "-m", message)
	return r.Git("rev-parse", "HEAD")
}

// Merge merges branch into the current branch with a merge commit
func (r *Repo) Merge(branch, author string) string {
	r.t.Helper()
	r.Git("-c", "user.name="+author, "merge", "--quiet", "--no-ff", "--no-edit", branch)
	return r.Git("rev-parse", "HEAD")
}
