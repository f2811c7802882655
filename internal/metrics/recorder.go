// Package metrics defines observability hooks for pipeline runs.
package metrics

import "time"

// Recorder defines observability hooks for run and stage metrics.
// Implementations may forward to Prometheus or elsewhere; the NoopRecorder
// allows optional injection.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncGameOutcome(outcome string) // outcome: published|skipped|failed
	SetGamesInManifest(n int)
	SetWorkerCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncGameOutcome(string)                      {}
func (NoopRecorder) SetGamesInManifest(int)                     {}
func (NoopRecorder) SetWorkerCount(int)                         {}
