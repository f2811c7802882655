package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("sync", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncGameOutcome("published")
	pr.IncGameOutcome("failed")
	pr.SetGamesInManifest(3)
	pr.SetWorkerCount(4)
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("sync", time.Second)
	pr.ObserveRunDuration(time.Second)
	pr.IncGameOutcome("skipped")
	pr.SetGamesInManifest(1)
	pr.SetWorkerCount(1)
}

func TestNoopRecorderImplementsInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("sync", time.Second)
	r.IncGameOutcome("published")
}
