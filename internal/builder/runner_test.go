package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	workdir := t.TempDir()
	runner := NewRunner(time.Minute)

	result, err := runner.Run(context.Background(), "pong",
		workdir, "mkdir -p dist && echo '<html></html>' > dist/index.html")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workdir, OutputDirName), result.OutputDir)
	assert.FileExists(t, filepath.Join(result.OutputDir, "index.html"))
	assert.Positive(t, result.Duration)
}

func TestRunCapturesDiagnostics(t *testing.T) {
	workdir := t.TempDir()
	runner := NewRunner(time.Minute)

	result, err := runner.Run(context.Background(), "pong",
		workdir, "echo compiling... && mkdir -p dist && touch dist/game.js && echo done >&2")
	require.NoError(t, err)

	assert.Contains(t, result.Log, "compiling...")
	assert.Contains(t, result.Log, "done")
}

func TestRunNonZeroExit(t *testing.T) {
	runner := NewRunner(time.Minute)

	_, err := runner.Run(context.Background(), "pong",
		t.TempDir(), "echo broken build >&2; exit 3")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Log, "broken build")
}

func TestRunOutputMissing(t *testing.T) {
	runner := NewRunner(time.Minute)

	// Exits zero without creating dist: must be a failure, not a success.
	_, err := runner.Run(context.Background(), "pong", t.TempDir(), "true")
	require.Error(t, err)

	var missing *OutputMissingError
	assert.ErrorAs(t, err, &missing)
}

func TestRunEmptyOutputDirIsMissing(t *testing.T) {
	runner := NewRunner(time.Minute)

	_, err := runner.Run(context.Background(), "pong", t.TempDir(), "mkdir -p dist")
	require.Error(t, err)

	var missing *OutputMissingError
	assert.ErrorAs(t, err, &missing)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	workdir := t.TempDir()
	runner := NewRunner(200 * time.Millisecond)

	start := time.Now()
	_, err := runner.Run(context.Background(), "pong", workdir, "sleep 30")
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)

	// The sleep must have been killed, not waited out.
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRunRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	runner := NewRunner(time.Minute)
	start := time.Now()
	_, err := runner.Run(ctx, "pong", t.TempDir(), "sleep 30")

	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTailTruncation(t *testing.T) {
	big := make([]byte, maxLogBytes+100)
	for i := range big {
		big[i] = 'x'
	}
	out := tail(big)
	assert.Contains(t, out, "truncated")
	assert.LessOrEqual(t, len(out), maxLogBytes+64)

	// Ensure dist validation helper rejects files masquerading as dirs.
	f := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	assert.Error(t, validateOutput(f))
}
