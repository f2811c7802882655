// Package builder executes the opaque per-game build command.
//
// The contract with external build tooling is deliberately small: the command
// runs with the working copy as its current directory and must leave its
// output in the OutputDirName subdirectory. Everything else about the build
// is the game's own business.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
)

// OutputDirName is the conventional output subdirectory the build command
// must populate within the working copy. This is the sole interface between
// the pipeline and arbitrary external build tooling.
const OutputDirName = "dist"

// maxLogBytes bounds captured diagnostic output per build.
const maxLogBytes = 256 * 1024

// Result is a successful build: a non-empty output directory plus diagnostics.
type Result struct {
	// OutputDir is the absolute path of the produced artifact directory.
	OutputDir string

	// Log is the captured combined stdout/stderr, tail-truncated.
	Log string

	// Duration is the wall time of the build command.
	Duration time.Duration
}

// TimeoutError indicates the build exceeded its bounded timeout and the
// process group was killed.
type TimeoutError struct {
	Timeout time.Duration
	Log     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("build timed out after %s", e.Timeout)
}

// ExitError indicates the build command exited non-zero.
type ExitError struct {
	Code int
	Log  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("build exited with status %d", e.Code)
}

// OutputMissingError indicates the command exited zero but produced no
// usable output directory. Silent no-op builds must not pass as successes.
type OutputMissingError struct {
	Path string
	Log  string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("build produced no output at %s", e.Path)
}

// Runner executes build commands with a bounded timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a runner. A non-positive timeout defaults to 10 minutes.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Runner{timeout: timeout}
}

// Run executes command with workdir as its working directory and validates
// the output contract. The command and all its descendants are killed when
// the timeout elapses or ctx is canceled.
func (r *Runner) Run(ctx context.Context, game, workdir, command string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	slog.Debug("Running build command",
		logfields.Game(game),
		logfields.Path(workdir),
		slog.String("command", command))

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workdir
	// New process group so the whole build tree can be killed, not just sh.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	log := tail(buf.Bytes())

	if runCtx.Err() == context.DeadlineExceeded {
		slog.Warn("Build timed out",
			logfields.Game(game),
			slog.Duration("timeout", r.timeout))
		return nil, &TimeoutError{Timeout: r.timeout, Log: log}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		code := -1
		if errors.As(runErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &ExitError{Code: code, Log: log}
	}

	outputDir := filepath.Join(workdir, OutputDirName)
	if err := validateOutput(outputDir); err != nil {
		return nil, &OutputMissingError{Path: outputDir, Log: log}
	}

	slog.Info("Build succeeded",
		logfields.Game(game),
		logfields.DurationMS(float64(duration.Milliseconds())),
		logfields.Path(outputDir))

	return &Result{OutputDir: outputDir, Log: log, Duration: duration}, nil
}

// validateOutput requires an existing, non-empty output directory.
func validateOutput(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%s is empty", dir)
	}
	return nil
}

func tail(b []byte) string {
	if len(b) <= maxLogBytes {
		return string(b)
	}
	return "...(truncated)...\n" + string(b[len(b)-maxLogBytes:])
}
