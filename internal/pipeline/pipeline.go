// Package pipeline orchestrates the per-game build pipelines for one run.
//
// Each game moves independently through sync → detect → build → publish.
// Failures are contained at the game boundary; the index is regenerated once
// after every game has reached a terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/arcadebuilder/internal/builder"
	"git.home.luguber.info/inful/arcadebuilder/internal/events"
	"git.home.luguber.info/inful/arcadebuilder/internal/gitsync"
	"git.home.luguber.info/inful/arcadebuilder/internal/index"
	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
	"git.home.luguber.info/inful/arcadebuilder/internal/manifest"
	"git.home.luguber.info/inful/arcadebuilder/internal/metrics"
	"git.home.luguber.info/inful/arcadebuilder/internal/state"
	"git.home.luguber.info/inful/arcadebuilder/internal/workspace"
)

// BuildRunner executes one game's build command. Satisfied by builder.Runner.
type BuildRunner interface {
	Run(ctx context.Context, game, workdir, command string) (*builder.Result, error)
}

// ArtifactPublisher atomically publishes one game's artifact and records its
// version. Satisfied by publish.Publisher.
type ArtifactPublisher interface {
	Publish(ctx context.Context, spec manifest.GameSpec, artifactDir, version, commit, runID string) error
}

// Orchestrator drives all per-game pipelines plus the final index generation.
type Orchestrator struct {
	manifestPath string
	publicRoot   string
	workers      int

	syncer    gitsync.Syncer
	runner    BuildRunner
	publisher ArtifactPublisher
	store     state.Store
	workspace *workspace.Manager
	pages     *index.Generator

	recorder metrics.Recorder
	events   events.Publisher
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithEvents injects an outcome event publisher.
func WithEvents(p events.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithWorkers bounds concurrent per-game pipelines.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// New creates an orchestrator.
func New(
	manifestPath, publicRoot string,
	syncer gitsync.Syncer,
	runner BuildRunner,
	publisher ArtifactPublisher,
	store state.Store,
	ws *workspace.Manager,
	pages *index.Generator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		manifestPath: manifestPath,
		publicRoot:   publicRoot,
		workers:      4,
		syncer:       syncer,
		runner:       runner,
		publisher:    publisher,
		store:        store,
		workspace:    ws,
		pages:        pages,
		recorder:     metrics.NoopRecorder{},
		events:       events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOnce executes one full orchestrator run: load manifest, run every game
// pipeline to a terminal state, regenerate the index.
//
// Only a manifest load failure returns an error; per-game failures are
// reported in the summary.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()[:8]
	started := time.Now()

	m, err := manifest.Load(o.manifestPath)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting run",
		logfields.RunID(runID),
		slog.Int("games", len(m.Games)),
		slog.Int("workers", o.workers))
	o.recorder.SetGamesInManifest(len(m.Games))
	o.recorder.SetWorkerCount(o.workers)

	if err := o.workspace.Create(runID); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if cleanupErr := o.workspace.Cleanup(); cleanupErr != nil {
			slog.Warn("Failed to cleanup workspace", logfields.Error(cleanupErr))
		}
	}()

	summary := &Summary{
		RunID:   runID,
		Started: started,
		Results: make([]GameResult, len(m.Games)),
	}

	// Fan out per-game pipelines to a bounded worker pool. Results land in
	// manifest-order slots so the summary and index keep display order.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				summary.Results[i] = o.runGame(ctx, runID, m.Games[i])
			}
		}()
	}
	for i := range m.Games {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// All pipelines are terminal; regenerate the index exactly once.
	if err := o.generateIndex(ctx, m); err != nil {
		slog.Error("Index generation failed", logfields.RunID(runID), logfields.Error(err))
	}

	summary.Finished = time.Now()
	summary.tally()
	o.report(summary)

	return summary, nil
}

// runGame drives one game's pipeline to a terminal state. All errors are
// converted into the result; nothing escapes the per-game boundary.
func (o *Orchestrator) runGame(ctx context.Context, runID string, spec manifest.GameSpec) GameResult {
	started := time.Now()
	result := GameResult{Name: spec.Name, State: StatePending}
	defer func() {
		result.Duration = time.Since(started)
	}()

	dir, err := o.workspace.GameDir(spec.Name)
	if err != nil {
		result.State = StateSyncFailed
		result.Kind = InternalFailure
		result.Err = err
		o.logFailure(runID, spec.Name, StageSync, err)
		return result
	}
	defer func() {
		if rmErr := o.workspace.RemoveGameDir(spec.Name); rmErr != nil {
			slog.Warn("Failed to remove game scratch dir",
				logfields.Game(spec.Name), logfields.Error(rmErr))
		}
	}()

	// Sync.
	result.State = StateSyncing
	syncStart := time.Now()
	checkout, err := o.syncer.Sync(ctx, spec, dir)
	o.recorder.ObserveStageDuration(StageSync, time.Since(syncStart))
	if err != nil {
		result.State = StateSyncFailed
		result.Kind = classifySyncError(err)
		result.Err = err
		o.logFailure(runID, spec.Name, StageSync, err)
		return result
	}
	result.Version = checkout.Version

	// Detect.
	result.State = StateDetecting
	needed, err := o.decideBuild(ctx, spec.Name, checkout.Version)
	if err != nil {
		// A record store read failure must not misreport "unchanged";
		// rebuilding is always safe.
		slog.Warn("Version record read failed, rebuilding",
			logfields.Game(spec.Name), logfields.Error(err))
		needed = true
	}
	if !needed {
		result.State = StateSkipped
		slog.Info("Game unchanged, skipping",
			logfields.RunID(runID),
			logfields.Game(spec.Name),
			logfields.Version(shortVersion(checkout.Version)))
		return result
	}

	// Build.
	result.State = StateBuilding
	buildStart := time.Now()
	artifact, err := o.runner.Run(ctx, spec.Name, checkout.Path, spec.BuildCommand)
	o.recorder.ObserveStageDuration(StageBuild, time.Since(buildStart))
	if err != nil {
		result.State = StateBuildFailed
		result.Kind, result.Diagnostics = classifyBuildError(err)
		result.Err = err
		o.logFailure(runID, spec.Name, StageBuild, err)
		return result
	}

	// Publish.
	result.State = StatePublishing
	publishStart := time.Now()
	err = o.publisher.Publish(ctx, spec, artifact.OutputDir, checkout.Version, checkout.Commit, runID)
	o.recorder.ObserveStageDuration(StagePublish, time.Since(publishStart))
	if err != nil {
		result.State = StatePublishFailed
		result.Kind = PublishFailed
		result.Err = err
		o.logFailure(runID, spec.Name, StagePublish, err)
		return result
	}

	result.State = StatePublished
	return result
}

// decideBuild is the change detector: build unless a successful publish
// record exists with the same content version.
func (o *Orchestrator) decideBuild(ctx context.Context, name, version string) (bool, error) {
	rec, err := o.store.Get(ctx, name)
	if err != nil {
		return true, err
	}
	if rec == nil {
		return true, nil
	}
	return rec.Version != version, nil
}

// generateIndex renders the listing of every game with a publish record, in
// manifest order. Games never successfully published are omitted.
func (o *Orchestrator) generateIndex(ctx context.Context, m *manifest.Manifest) error {
	indexStart := time.Now()
	defer func() {
		o.recorder.ObserveStageDuration(StageIndex, time.Since(indexStart))
	}()

	var entries []index.Entry
	for _, g := range m.Games {
		rec, err := o.store.Get(ctx, g.Name)
		if err != nil {
			return fmt.Errorf("read record for %s: %w", g.Name, err)
		}
		if rec == nil {
			continue
		}
		entries = append(entries, index.Entry{
			Name:        g.Name,
			Description: g.Description,
			Tags:        g.Tags,
		})
	}

	return o.pages.Write(o.publicRoot, entries)
}

func (o *Orchestrator) report(summary *Summary) {
	o.recorder.ObserveRunDuration(summary.Finished.Sub(summary.Started))
	for _, r := range summary.Results {
		o.recorder.IncGameOutcome(r.Outcome())

		outcome := events.Outcome{
			RunID:      summary.RunID,
			Game:       r.Name,
			State:      string(r.State),
			Version:    r.Version,
			FinishedAt: summary.Finished,
		}
		if r.Err != nil {
			outcome.Error = r.Err.Error()
		}
		o.events.PublishOutcome(outcome)
	}

	slog.Info("Run finished",
		logfields.RunID(summary.RunID),
		slog.Int("published", summary.Published),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		logfields.DurationMS(float64(summary.Finished.Sub(summary.Started).Milliseconds())))

	for _, r := range summary.Results {
		if r.State.Failed() {
			slog.Warn("Game failed this run",
				logfields.Game(r.Name),
				logfields.Outcome(string(r.State)),
				slog.String("kind", string(r.Kind)),
				logfields.Error(r.Err))
		}
	}
}

func (o *Orchestrator) logFailure(runID, game, stage string, err error) {
	slog.Error("Pipeline stage failed",
		logfields.RunID(runID),
		logfields.Game(game),
		logfields.Stage(stage),
		logfields.Error(err))
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

func classifySyncError(err error) FailureKind {
	var unreachable *gitsync.UnreachableError
	if errors.As(err, &unreachable) {
		return SyncUnreachable
	}
	var corrupt *gitsync.CorruptError
	if errors.As(err, &corrupt) {
		return SyncCorrupt
	}
	return SyncCorrupt
}

func classifyBuildError(err error) (FailureKind, string) {
	var timeout *builder.TimeoutError
	if errors.As(err, &timeout) {
		return BuildTimedOut, timeout.Log
	}
	var exit *builder.ExitError
	if errors.As(err, &exit) {
		return BuildNonZeroExit, exit.Log
	}
	var missing *builder.OutputMissingError
	if errors.As(err, &missing) {
		return BuildOutputMissing, missing.Log
	}
	return InternalFailure, ""
}
