// Package sandbox runs hook scripts in a throwaway shell for dry-run
// testing. Nothing here is invoked on real verification traffic.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Result captures one execution. Output interleaves stdout and stderr in
// arrival order.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

type Executor interface {
	Run(ctx context.Context, script, input string) (*Result, error)
}

// ShellExecutor writes the script to a temp file and runs it under the
// configured shell with the test input on stdin.
type ShellExecutor struct {
	Shell   string
	Timeout time.Duration
}

func NewShellExecutor(shell string, timeout time.Duration) *ShellExecutor {
	if shell == "" {
		shell = "/bin/sh"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ShellExecutor{Shell: shell, Timeout: timeout}
}

const maxOutputBytes = 64 * 1024

func (e *ShellExecutor) Run(ctx context.Context, script, input string) (*Result, error) {
	dir, err := os.MkdirTemp("", "hook-test-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.Shell, path)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = []string{"PATH=/usr/bin:/bin", "HOME=" + dir}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := &Result{
		Output:   truncate(out.String()),
		Duration: duration,
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case res.TimedOut:
		res.ExitCode = -1
	default:
		return nil, runErr
	}
	return res, nil
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... output truncated"
}
