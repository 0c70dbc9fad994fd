// Package executor runs external enumeration tools (netstat, lsof) with a
// bounded lifetime and bounded output capture.
package executor

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/hostprobe/hostprobe/internal/logging"
)

var log = logging.L("executor")

const (
	// DefaultTimeout is the default tool execution timeout.
	DefaultTimeout = 30 * time.Second

	// MaxOutputSize is the maximum size of stdout to capture.
	MaxOutputSize = 1024 * 1024 // 1MB
)

// Runner executes a command and returns its captured stdout. Collectors
// depend on this interface so tests can supply canned tool output without
// spawning subprocesses.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandRunner is the production Runner. Every invocation gets its own
// process group and is killed as a group on timeout, so no subprocess
// outlives the collection call.
type CommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner returns a runner with the given per-invocation timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewCommandRunner(timeout time.Duration) *CommandRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandRunner{Timeout: timeout}
}

// Run executes name with args and returns captured stdout. A command that
// exits non-zero but still produced output is treated as success: the
// enumeration tools exit non-zero for empty tables while emitting the rows
// that do exist. Stderr is discarded.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: MaxOutputSize}
	cmd.Stderr = nil

	setProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		if killErr := killProcessGroup(cmd); killErr != nil {
			log.Warn("failed to kill process group", "command", name, "error", killErr)
		}
		log.Warn("command timed out", "command", name, "timeout", timeout)
		return nil, ctx.Err()
	}

	if err != nil {
		if stdout.Len() > 0 {
			log.Debug("command exited non-zero with output", "command", name, "error", err)
			return stdout.Bytes(), nil
		}
		log.Debug("command failed", "command", name, "error", err, "durationMs", time.Since(start).Milliseconds())
		return nil, err
	}

	return stdout.Bytes(), nil
}

// limitedWriter wraps a buffer with a size limit.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (n int, err error) {
	// Always report the caller's full length: a short count here would
	// make os/exec's copier fail the whole Run once the cap is hit.
	orig := len(p)

	if w.written >= w.limit {
		return orig, nil
	}

	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}

	n, err = w.buf.Write(p)
	w.written += n
	if err != nil {
		return n, err
	}
	return orig, nil
}
