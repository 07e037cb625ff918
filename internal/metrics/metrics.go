// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ArticlesRewriter/internal/ports"
)

const namespace = "articles_rewriter"

// Metrics implements ports.Metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	itemsTotal      *prometheus.CounterVec
	externalCalls   *prometheus.CounterVec
	rewriteAttempts prometheus.Histogram
	runInProgress   prometheus.Gauge
	circuitOpen     prometheus.Gauge
}

var _ ports.Metrics = (*Metrics)(nil)

// New creates and registers all pipeline metrics plus the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by trigger reason and result.",
		}, []string{"reason", "result"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"reason"}),
		itemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Listing items by outcome.",
		}, []string{"outcome"}),
		externalCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to third-party services by service and result.",
		}, []string{"service", "result"}),
		rewriteAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rewrite_attempts",
			Help:      "Generation attempts spent per rewrite.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
		runInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a pipeline run is active.",
		}),
		circuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 while the generative-API circuit breaker is open.",
		}),
	}
}

func (m *Metrics) ItemOutcome(outcome string) {
	m.itemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RewriteAttempts(attempts int) {
	m.rewriteAttempts.Observe(float64(attempts))
}

func (m *Metrics) ExternalCall(service, result string) {
	m.externalCalls.WithLabelValues(service, result).Inc()
}

func (m *Metrics) RunFinished(reason, result string, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(reason, result).Inc()
	m.runDuration.WithLabelValues(reason).Observe(elapsed.Seconds())
}

func (m *Metrics) SetRunning(running bool) {
	m.runInProgress.Set(boolValue(running))
}

func (m *Metrics) SetCircuitOpen(open bool) {
	m.circuitOpen.Set(boolValue(open))
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
