// Package publish atomically replaces the public artifact directory for a
// game and records the published content version.
//
// The swap is staged inside the public root so the final renames stay on one
// filesystem. A concurrent reader of the public tree only ever sees the fully
// old or the fully new artifact, never a mixture.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/arcadebuilder/internal/errors"
	"git.home.luguber.info/inful/arcadebuilder/internal/index"
	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/manifest"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
)

// Publisher owns all mutation of the public tree and the version record store.
type Publisher struct {
	publicRoot string
	store      state.Store
	pages      *index.Generator
	thumbnail  *ThumbnailHook
}

// NewPublisher creates a publisher rooted at publicRoot.
func NewPublisher(publicRoot string, store state.Store, pages *index.Generator) *Publisher {
	return &Publisher{
		publicRoot: publicRoot,
		store:      store,
		pages:      pages,
	}
}

// WithThumbnailHook attaches the optional post-publish thumbnail hook.
func (p *Publisher) WithThumbnailHook(hook *ThumbnailHook) *Publisher {
	p.thumbnail = hook
	return p
}

// Publish makes artifactDir the public content for the game and then records
// the content version. The record write happens strictly after the swap; a
// failed swap leaves both the public tree and the record untouched.
func (p *Publisher) Publish(ctx context.Context, spec manifest.GameSpec, artifactDir, version, commit, runID string) error {
	if err := os.MkdirAll(p.publicRoot, 0o755); err != nil {
		return errors.PublishError("failed to create public root").
			WithCause(err).
			WithContext("path", p.publicRoot).
			Build()
	}

	stageDir := filepath.Join(p.publicRoot, fmt.Sprintf(".stage-%s-%s", spec.Name, runID))
	if err := copyTree(artifactDir, stageDir); err != nil {
		_ = os.RemoveAll(stageDir)
		return errors.PublishError("failed to stage artifact").
			WithCause(err).
			WithContext("game", spec.Name).
			Build()
	}

	// The info page is part of the staged artifact so it swaps in atomically
	// with the game content.
	infoEntry := index.Entry{Name: spec.Name, Description: spec.Description, Tags: spec.Tags}
	if err := p.pages.WriteInfoPage(stageDir, infoEntry, commit); err != nil {
		_ = os.RemoveAll(stageDir)
		return errors.PublishError("failed to render info page").
			WithCause(err).
			WithContext("game", spec.Name).
			Build()
	}

	if err := p.swap(spec.Name, stageDir, runID); err != nil {
		_ = os.RemoveAll(stageDir)
		return errors.PublishError("failed to swap public directory").
			WithCause(err).
			WithContext("game", spec.Name).
			Build()
	}

	// Only now is the new version authoritative.
	rec := &state.Record{
		Name:        spec.Name,
		Version:     version,
		Commit:      commit,
		PublishedAt: time.Now().UTC(),
	}
	if err := p.store.Put(ctx, rec); err != nil {
		return errors.StateError("published but failed to record version").
			WithCause(err).
			WithContext("game", spec.Name).
			Build()
	}

	slog.Info("Published game",
		logfields.Game(spec.Name),
		logfields.Version(version[:min(12, len(version))]),
		logfields.Path(filepath.Join(p.publicRoot, spec.Name)))

	if p.thumbnail != nil {
		// Hook failures never affect publish status.
		p.thumbnail.Capture(ctx, spec.Name, filepath.Join(p.publicRoot, spec.Name))
	}

	return nil
}

// swap atomically replaces publicRoot/name with stageDir. The previous
// content is moved aside first and restored if the swap-in fails.
func (p *Publisher) swap(name, stageDir, runID string) error {
	liveDir := filepath.Join(p.publicRoot, name)
	oldDir := filepath.Join(p.publicRoot, fmt.Sprintf(".old-%s-%s", name, runID))

	hadPrevious := false
	if _, err := os.Stat(liveDir); err == nil {
		hadPrevious = true
		if err := os.Rename(liveDir, oldDir); err != nil {
			return fmt.Errorf("move previous aside: %w", err)
		}
	}

	if err := os.Rename(stageDir, liveDir); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(oldDir, liveDir); restoreErr != nil {
				return fmt.Errorf("swap in failed (%w) and restore failed: %v", err, restoreErr)
			}
		}
		return fmt.Errorf("swap in: %w", err)
	}

	if hadPrevious {
		if err := os.RemoveAll(oldDir); err != nil {
			// The new content is live; a lingering .old dir is only clutter.
			slog.Warn("Failed to remove previous artifact",
				logfields.Game(name), logfields.Path(oldDir), logfields.Error(err))
		}
	}
	return nil
}

// copyTree copies a directory tree. Regular files and directories only;
// the artifact contract has no business containing device nodes or sockets.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(path, target)
		case d.Type()&os.ModeSymlink != 0:
			// Resolve symlinks into regular files; the public tree must be
			// self-contained.
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return err
			}
			info, err := os.Stat(resolved)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			return copyFile(resolved, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
