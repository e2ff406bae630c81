package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCheckout marks a failure to switch the working copy to a revision
var ErrCheckout = errors.New("checkout failed")

// Repository is an owned working copy with exactly one checkout state.
// Revision switches go through Checkout or MeasureAt, which hold the handle's
// lock for the whole checkout (+measure) sequence, so two callers can never
// interleave. A Repository must not be shared between independent runs.
type Repository struct {
	path    string
	runner  Runner
	timeout time.Duration
	logger  *logrus.Entry
	owned   bool
	clean   bool

	mu sync.Mutex
}

// Option configures a Repository
type Option func(*Repository)

// WithRunner replaces the process runner
func WithRunner(r Runner) Option {
	return func(repo *Repository) { repo.runner = r }
}

// WithTimeout bounds every git invocation; zero means no timeout
func WithTimeout(d time.Duration) Option {
	return func(repo *Repository) { repo.timeout = d }
}

// WithLogger sets the log sink
func WithLogger(l *logrus.Entry) Option {
	return func(repo *Repository) { repo.logger = l }
}

// WithCleanMeasure makes MeasureAt remove untracked and ignored files after
// each checkout. Clones get this by default; an opened working copy only
// when asked, since the files belong to the caller.
func WithCleanMeasure() Option {
	return func(repo *Repository) { repo.clean = true }
}

// Open wraps an existing working copy. The caller keeps ownership of the
// directory: Remove refuses to delete it.
func Open(path string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path %s: %w", path, err)
	}
	if !isValidGitRepo(abs) {
		return nil, fmt.Errorf("not a git repository: %s", abs)
	}
	return newRepository(abs, false, opts...), nil
}

func newRepository(path string, owned bool, opts ...Option) *Repository {
	repo := &Repository{
		path:   path,
		runner: ExecRunner{},
		owned:  owned,
		clean:  owned,
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Path returns the working copy root
func (r *Repository) Path() string {
	return r.path
}

// Exec runs an arbitrary tool inside the working copy. timeout of zero means
// no limit beyond ctx.
func (r *Repository) Exec(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.runner.Run(ctx, r.path, name, args...)
}

// Git runs a git subcommand in the working copy
func (r *Repository) Git(ctx context.Context, args ...string) ([]byte, error) {
	r.logger.WithField("args", args).Debug("Executing git command")
	return r.Exec(ctx, r.timeout, "git", args...)
}

// Checkout forces the working copy to rev, discarding local changes
func (r *Repository) Checkout(ctx context.Context, rev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkoutLocked(ctx, rev)
}

func (r *Repository) checkoutLocked(ctx context.Context, rev string) error {
	if _, err := r.Git(ctx, "checkout", "--force", "--quiet", rev); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCheckout, rev, err)
	}
	return nil
}

// MeasureAt checks out rev and runs measure against it while holding the
// handle's lock. Callers never observe the working copy between the two steps.
// With clean measuring on, untracked and ignored files are removed first so
// measure sees only the files of rev. Checkout and clean failures wrap
// ErrCheckout; errors from measure are returned as is.
func (r *Repository) MeasureAt(ctx context.Context, rev string, measure func(ctx context.Context) (int, error)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkoutLocked(ctx, rev); err != nil {
		return 0, err
	}
	if r.clean {
		if _, err := r.Git(ctx, "clean", "-ffdx", "--quiet"); err != nil {
			return 0, fmt.Errorf("%w: clean %s: %w", ErrCheckout, rev, err)
		}
	}
	return measure(ctx)
}

// Remove deletes a working copy created by Clone. Read-only files (git pack
// files on some platforms) are made writable first.
func (r *Repository) Remove() error {
	if !r.owned {
		return fmt.Errorf("refusing to remove repository not created by Clone: %s", r.path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	filepath.Walk(r.path, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().Perm()&0200 == 0 {
			os.Chmod(path, info.Mode().Perm()|0200)
		}
		return nil
	})

	if err := os.RemoveAll(r.path); err != nil {
		return fmt.Errorf("remove repository %s: %w", r.path, err)
	}
	return nil
}

// isValidGitRepo checks if directory is a git working copy (.git dir or worktree file)
func isValidGitRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// ParseRepoURL extracts owner and repo name from a remote URL
// Supports multiple URL formats:
//   - HTTPS: https://github.com/owner/repo.git
//   - SSH: git@github.com:owner/repo.git
//   - Git protocol: git://github.com/owner/repo.git
func ParseRepoURL(remoteURL string) (owner, repo string, err error) {
	remoteURL = strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	remoteURL = strings.TrimSuffix(remoteURL, ".git")

	httpsRegex := regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/]+)`)
	if matches := httpsRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	sshRegex := regexp.MustCompile(`git@[^:]+:([^/]+)/([^/]+)`)
	if matches := sshRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	gitRegex := regexp.MustCompile(`git://[^/]+/([^/]+)/([^/]+)`)
	if matches := gitRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	return "", "", fmt.Errorf("unrecognized git URL format: %s", remoteURL)
}

// RepoName returns the last path segment of a repository URL without .git
func RepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	url = strings.TrimSuffix(url, ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		return url[i+1:]
	}
	return url
}
