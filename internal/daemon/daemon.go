// Package daemon runs the orchestrator continuously: a periodic schedule
// plus an optional manifest watcher both feed a single trigger channel, so
// runs never overlap and rapid triggers coalesce into one run.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/metrics"
	"git.home.luguber.info/inful/arcadebuilder/internal/pipeline"
)

// Runner is the single-run entrypoint the daemon drives. Satisfied by
// pipeline.Orchestrator.
type Runner interface {
	RunOnce(ctx context.Context) (*pipeline.Summary, error)
}

// Options configures the daemon loop.
type Options struct {
	// Interval between scheduled runs. Non-positive defaults to 15 minutes.
	Interval time.Duration

	// ManifestPath enables the manifest watcher when WatchManifest is set.
	ManifestPath  string
	WatchManifest bool

	// MetricsAddr serves /metrics and /healthz when non-empty.
	MetricsAddr string
	Registry    *prometheus.Registry
}

// Daemon owns the schedule, the watcher, and the run loop.
type Daemon struct {
	runner  Runner
	opts    Options
	trigger chan string
}

// New creates a daemon around a runner.
func New(runner Runner, opts Options) *Daemon {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	return &Daemon{
		runner: runner,
		opts:   opts,
		// Capacity one: triggers arriving during a run coalesce into a
		// single follow-up run instead of queueing.
		trigger: make(chan string, 1),
	}
}

// Trigger requests a run. Drops the request when one is already pending.
func (d *Daemon) Trigger(reason string) {
	select {
	case d.trigger <- reason:
	default:
		slog.Debug("Run already pending, trigger coalesced", slog.String("reason", reason))
	}
}

// Run blocks until ctx is canceled, executing one run immediately and then
// one per trigger. Run errors are logged, never fatal.
func (d *Daemon) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(d.opts.Interval),
		gocron.NewTask(func() { d.Trigger("schedule") }),
		gocron.WithName("periodic-run"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule periodic run: %w", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	if d.opts.WatchManifest {
		watcher, err := NewManifestWatcher(d.opts.ManifestPath, func() {
			d.Trigger("manifest-change")
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if d.opts.MetricsAddr != "" {
		d.serveMetrics(ctx)
	}

	slog.Info("Daemon started",
		slog.Duration("interval", d.opts.Interval),
		slog.Bool("watch_manifest", d.opts.WatchManifest))

	d.Trigger("startup")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Daemon stopping")
			return nil
		case reason := <-d.trigger:
			d.runOnce(ctx, reason)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, reason string) {
	slog.Info("Run triggered", slog.String("reason", reason))
	if _, err := d.runner.RunOnce(ctx); err != nil {
		slog.Error("Run failed", slog.String("reason", reason), logfields.Error(err))
	}
}

// serveMetrics exposes /metrics and /healthz on the configured address for
// the daemon's lifetime.
func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	if d.opts.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(d.opts.Registry))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              d.opts.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", slog.String("addr", d.opts.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
