package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/arcadebuilder/internal/config"
	"git.home.luguber.info/inful/arcadebuilder/internal/daemon"
	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"arcadebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Manifest string `short:"m" help:"Override manifest path from configuration"`
	} `cmd:"" help:"Run one build cycle over all games in the manifest"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct {
		MetricsAddr string `help:"Override metrics listen address (e.g. :9090)"`
	} `cmd:"" help:"Run continuously: periodic builds plus manifest watching"`

	Status struct{} `cmd:"" help:"Show the publish record for every game"`

	Reset struct {
		Game string `arg:"" help:"Game whose publish record to clear"`
	} `cmd:"" help:"Clear a game's publish record, forcing a rebuild on the next run"`
}

func main() {
	kctx := kong.Parse(&CLI)

	switch kctx.Command() {
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		slog.Info("Configuration written", logfields.Path(CLI.Config))
		return
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	cfg.Logging.SetupLogger(CLI.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "build":
		if CLI.Build.Manifest != "" {
			cfg.ManifestPath = CLI.Build.Manifest
		}
		failed, err := runBuild(ctx, cfg)
		if err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(2)
		}
	case "daemon":
		if CLI.Daemon.MetricsAddr != "" {
			cfg.Daemon.MetricsAddr = CLI.Daemon.MetricsAddr
		}
		if err := runDaemon(ctx, cfg); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "status":
		if err := withStore(cfg, func(store state.Store) error {
			return printStatus(ctx, store, os.Stdout)
		}); err != nil {
			slog.Error("Status failed", logfields.Error(err))
			os.Exit(1)
		}
	case "reset <game>":
		if err := withStore(cfg, func(store state.Store) error {
			return resetGame(ctx, store, os.Stdout, CLI.Reset.Game)
		}); err != nil {
			slog.Error("Reset failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

// withStore opens the state store for commands that do not need the full
// pipeline graph.
func withStore(cfg *config.Config, fn func(state.Store) error) error {
	if err := os.MkdirAll(cfg.StateDir, 0o750); err != nil {
		return err
	}
	store, err := state.NewSQLiteStore(filepath.Join(cfg.StateDir, stateDBName))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close state store", logfields.Error(err))
		}
	}()
	return fn(store)
}

// runBuild executes one pipeline run and returns the failed game count.
func runBuild(ctx context.Context, cfg *config.Config) (int, error) {
	app, err := newApp(cfg)
	if err != nil {
		return 0, err
	}
	defer app.Close()

	summary, err := app.orchestrator.RunOnce(ctx)
	if err != nil {
		return 0, err
	}
	return summary.Failed, nil
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	d := daemon.New(app.orchestrator, daemon.Options{
		Interval:      cfg.Daemon.Interval,
		ManifestPath:  cfg.ManifestPath,
		WatchManifest: cfg.Daemon.WatchManifest,
		MetricsAddr:   cfg.Daemon.MetricsAddr,
		Registry:      app.registry,
	})
	return d.Run(ctx)
}
