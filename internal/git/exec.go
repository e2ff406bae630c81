package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes an external program inside a directory and returns its stdout.
// Tests substitute a fake to simulate tools such as scc exiting non-zero.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes via os/exec
type ExecRunner struct {
	// Env is appended to the current environment
	Env []string
}

// Run executes name with args in dir. A non-zero exit yields an error that
// carries the command's stderr.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.Env = append(cmd.Env, r.Env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctx.Err())
		}
		return output, fmt.Errorf("%s %s failed: %w (stderr: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// RequireExecutable checks that an executable is on PATH
func RequireExecutable(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s is not available, install it and ensure it's in your PATH: %w", name, err)
	}
	return nil
}
