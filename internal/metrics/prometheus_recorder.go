package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	runDuration     prom.Histogram
	gameOutcomes    *prom.CounterVec
	gamesInManifest prom.Gauge
	workerCount     prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "arcadebuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "arcadebuilder",
			Name:      "run_duration_seconds",
			Help:      "Total orchestrator run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.gameOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "arcadebuilder",
			Name:      "game_outcomes_total",
			Help:      "Per-game pipeline outcomes by terminal state",
		}, []string{"outcome"})
		pr.gamesInManifest = prom.NewGauge(prom.GaugeOpts{
			Namespace: "arcadebuilder",
			Name:      "games_in_manifest",
			Help:      "Number of games in the last loaded manifest",
		})
		pr.workerCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "arcadebuilder",
			Name:      "worker_count",
			Help:      "Configured pipeline worker limit",
		})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.gameOutcomes, pr.gamesInManifest, pr.workerCount)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncGameOutcome(outcome string) {
	if p == nil || p.gameOutcomes == nil {
		return
	}
	p.gameOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetGamesInManifest(n int) {
	if p == nil || p.gamesInManifest == nil {
		return
	}
	p.gamesInManifest.Set(float64(n))
}

func (p *PrometheusRecorder) SetWorkerCount(n int) {
	if p == nil || p.workerCount == nil {
		return
	}
	p.workerCount.Set(float64(n))
}

// HTTPHandler returns an http.Handler serving Prometheus metrics for the registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
