package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/arcadebuilder/internal/builder"
	"git.home.luguber.info/inful/arcadebuilder/internal/config"
	"git.home.luguber.info/inful/arcadebuilder/internal/events"
	"git.home.luguber.info/inful/arcadebuilder/internal/gitsync"
	"git.home.luguber.info/inful/arcadebuilder/internal/index"
	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/metrics"
	"git.home.luguber.info/inful/arcadebuilder/internal/pipeline"
	"git.home.luguber.info/inful/arcadebuilder/internal/publish"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
	"git.home.luguber.info/inful/arcadebuilder/internal/workspace"
)

// stateDBName is the publish record database inside the state directory.
const stateDBName = "arcadebuilder.db"

// app holds the wired component graph behind both the build and daemon
// commands.
type app struct {
	orchestrator *pipeline.Orchestrator
	registry     *prometheus.Registry

	store  state.Store
	events events.Publisher
}

// newApp assembles the pipeline from configuration.
func newApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	store, err := state.NewSQLiteStore(filepath.Join(cfg.StateDir, stateDBName))
	if err != nil {
		return nil, err
	}

	var ws *workspace.Manager
	if cfg.Build.KeepClones {
		ws = workspace.NewPersistentManager(cfg.StateDir, "clones")
	} else {
		ws = workspace.NewManager(cfg.WorkspaceDir)
	}

	pages := index.NewGenerator(index.Site{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		BaseURL:     cfg.Site.BaseURL,
	})

	publisher := publish.NewPublisher(cfg.PublicDir, store, pages).
		WithThumbnailHook(publish.NewThumbnailHook(cfg.Thumbnail.Command, cfg.Thumbnail.Size))

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	var eventPub events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			slog.Warn("Events disabled, NATS connection failed",
				logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			eventPub = natsPub
		}
	}

	orchestrator := pipeline.New(
		cfg.ManifestPath,
		cfg.PublicDir,
		gitsync.NewGitSyncer(),
		builder.NewRunner(cfg.Build.Timeout),
		publisher,
		store,
		ws,
		pages,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithRecorder(recorder),
		pipeline.WithEvents(eventPub),
	)

	return &app{
		orchestrator: orchestrator,
		registry:     registry,
		store:        store,
		events:       eventPub,
	}, nil
}

// Close releases long-lived resources.
func (a *app) Close() {
	a.events.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close state store", logfields.Error(err))
	}
}
