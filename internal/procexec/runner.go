package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"shortforge/internal/logging"
	"shortforge/internal/services"
)

// Result captures the outcome of one external process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so media stages can be tested without
// ffmpeg, ffprobe, or WhisperX installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env    []string
	Logger *slog.Logger
}

// Run executes one command and captures stdout, stderr, and exit code. A
// non-zero exit is reported as an error alongside the populated Result.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...) //nolint:gosec
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Debug("running command",
		logging.String("command", name),
		logging.String("args", strings.Join(args, " ")),
	)

	started := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		logger.Debug("command finished",
			logging.String("command", name),
			logging.Duration("elapsed", time.Since(started)),
		)
		return result, nil
	}

	result.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return result, fmt.Errorf("%s: %w after %s", name, services.ErrTimeout, r.Timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s: %w", name, ctxErr)
	}
	return result, fmt.Errorf("%s: %w", name, err)
}

// Tail returns at most the last n non-empty lines of output, for diagnostics.
func Tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, "\r"))
		}
	}
	if n > 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
