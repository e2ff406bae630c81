package git

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Clone performs a full, never shallow, clone of url into a fresh temporary
// directory. The returned Repository owns the directory; call Remove when
// done.
func Clone(ctx context.Context, url string, opts ...Option) (*Repository, error) {
	if err := RequireExecutable("git"); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "refeffort-clone-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}

	repo := newRepository(dir, true, opts...)
	repo.logger.WithField("url", url).WithField("dir", dir).Info("Cloning repository")

	start := time.Now()
	if _, err := repo.runner.Run(ctx, dir, "git", "clone", "--quiet", url, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("git clone %s failed: %w", url, err)
	}

	repo.logger.WithField("duration", time.Since(start).Round(10*time.Millisecond).String()).
		Info("Repository cloned")
	return repo, nil
}
