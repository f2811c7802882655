// Package workspace manages scratch directories for pipeline runs.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
)

// Manager hands out isolated per-game directories under one run-scoped root
// and removes the whole tree on Cleanup. In persistent mode the root is a
// fixed directory that survives runs, enabling incremental fetches.
type Manager struct {
	baseDir    string
	root       string
	persistent bool
}

// NewManager creates a workspace manager with an ephemeral run directory.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a workspace manager rooted at a fixed
// directory that Cleanup leaves in place.
func NewPersistentManager(baseDir, subdir string) *Manager {
	if subdir == "" {
		subdir = "working"
	}
	return &Manager{
		baseDir:    baseDir,
		root:       filepath.Join(baseDir, subdir),
		persistent: true,
	}
}

// Create materializes the workspace root. For ephemeral managers a unique
// run directory is created; persistent managers just ensure the fixed root exists.
func (m *Manager) Create(runID string) error {
	if m.persistent {
		if err := os.MkdirAll(m.root, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace: %w", err)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.root))
		return nil
	}

	root := filepath.Join(m.baseDir, fmt.Sprintf("arcadebuilder-%s", runID))
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	m.root = root
	slog.Debug("Created workspace", logfields.Path(root))
	return nil
}

// Path returns the workspace root.
func (m *Manager) Path() string { return m.root }

// GameDir returns the scratch directory for one game, creating it if needed.
// Each game gets its own namespace so concurrent pipelines never collide.
func (m *Manager) GameDir(name string) (string, error) {
	if m.root == "" {
		return "", fmt.Errorf("workspace not created")
	}
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create game directory: %w", err)
	}
	return dir, nil
}

// RemoveGameDir deletes one game's scratch directory. Used on per-game exit
// paths so a long run does not accumulate dead checkouts.
func (m *Manager) RemoveGameDir(name string) error {
	if m.root == "" || m.persistent {
		return nil
	}
	return os.RemoveAll(filepath.Join(m.root, name))
}

// Cleanup removes the workspace root. Persistent roots are kept.
func (m *Manager) Cleanup() error {
	if m.root == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Keeping persistent workspace", logfields.Path(m.root))
		return nil
	}
	if err := os.RemoveAll(m.root); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.root))
	m.root = ""
	return nil
}
