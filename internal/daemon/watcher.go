package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
)

// ManifestWatcher triggers the daemon when the manifest file changes.
// Editors write with temp-and-rename, so create and rename events count as
// changes too; rapid event bursts are debounced into one trigger.
type ManifestWatcher struct {
	manifestPath string
	onChange     func()
	watcher      *fsnotify.Watcher
	debounceTime time.Duration

	mu       sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
	eventCh  chan struct{}
}

// NewManifestWatcher creates a watcher for the given manifest path.
func NewManifestWatcher(manifestPath string, onChange func()) (*ManifestWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	return &ManifestWatcher{
		manifestPath: absPath,
		onChange:     onChange,
		watcher:      watcher,
		debounceTime: 2 * time.Second,
		stopChan:     make(chan struct{}),
		eventCh:      make(chan struct{}, 1),
	}, nil
}

// Start begins watching. The containing directory is watched rather than the
// file itself, so rename-based rewrites keep being observed.
func (w *ManifestWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.manifestPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch manifest directory %s: %w", dir, err)
	}

	slog.Info("Watching manifest", logfields.Path(w.manifestPath))
	go w.watchLoop(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *ManifestWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			slog.Warn("Failed to close manifest watcher", logfields.Error(err))
		}
	})
}

func (w *ManifestWatcher) watchLoop(ctx context.Context) {
	manifestFile := filepath.Base(w.manifestPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != manifestFile {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("Manifest change detected", logfields.Path(event.Name))
				select {
				case w.eventCh <- struct{}{}:
				default:
				}
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("Manifest file removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Manifest watcher error", logfields.Error(err))
		}
	}
}

// debounceLoop collapses event bursts: the trigger fires once, debounceTime
// after the last observed change.
func (w *ManifestWatcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.eventCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounceTime)
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			w.onChange()
		}
	}
}
