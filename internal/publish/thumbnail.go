package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
)

// ThumbnailHook invokes an external command after a successful publish to
// capture a preview image into the public game directory. It is entirely
// best-effort: failures are logged and never affect publish status or the
// index document.
type ThumbnailHook struct {
	command string
	size    string
	timeout time.Duration
}

// NewThumbnailHook creates a hook. Returns nil when no command is configured,
// which callers treat as "no hook".
func NewThumbnailHook(command, size string) *ThumbnailHook {
	if command == "" {
		return nil
	}
	return &ThumbnailHook{
		command: command,
		size:    size,
		timeout: 2 * time.Minute,
	}
}

// Capture runs the hook command with the public game directory and desired
// size as positional arguments.
func (h *ThumbnailHook) Capture(ctx context.Context, game, publicDir string) {
	hookCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, "sh", "-c",
		fmt.Sprintf(`%s "$1" "$2"`, h.command), "thumbnail", publicDir, h.size)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		slog.Warn("Thumbnail hook failed",
			logfields.Game(game),
			logfields.Error(err),
			slog.String("output", buf.String()))
		return
	}

	slog.Debug("Thumbnail captured", logfields.Game(game), logfields.Path(publicDir))
}
