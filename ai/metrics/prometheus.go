// Package metrics provides Prometheus metrics export for the
// conversation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	turnLatency  *prometheus.HistogramVec
	turnRequests *prometheus.CounterVec

	stageLatency *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	reconciles prometheus.Counter

	providerWins   *prometheus.CounterVec
	providerErrors *prometheus.CounterVec

	activeSessions prometheus.Gauge
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesense_turn_latency_seconds",
		Help:    "End-to-end latency of one conversation turn",
		Buckets: cfg.LatencyBuckets,
	}, []string{"cache_type"})

	e.turnRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesense_turn_requests_total",
		Help: "Total processed conversation turns",
	}, []string{"cache_type"})

	e.stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesense_stage_latency_seconds",
		Help:    "Latency of individual pipeline stages",
		Buckets: cfg.LatencyBuckets,
	}, []string{"stage"})

	e.cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesense_cache_hits_total",
		Help: "Cache hits by tier",
	}, []string{"tier"})

	e.cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesense_cache_misses_total",
		Help: "Cache misses by tier",
	}, []string{"tier"})

	e.reconciles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "salesense_reconciles_total",
		Help: "Situation detections re-run with post-capture context",
	})

	e.providerWins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesense_provider_wins_total",
		Help: "Race wins by LLM provider",
	}, []string{"provider"})

	e.providerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesense_provider_errors_total",
		Help: "Errors by LLM provider",
	}, []string{"provider"})

	e.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "salesense_active_sessions",
		Help: "Number of live conversation sessions",
	})

	registry.MustRegister(
		e.turnLatency,
		e.turnRequests,
		e.stageLatency,
		e.cacheHits,
		e.cacheMisses,
		e.reconciles,
		e.providerWins,
		e.providerErrors,
		e.activeSessions,
	)

	return e
}

// RecordTurn records one completed conversation turn. cacheType is "exact",
// "semantic", or "none".
func (e *PrometheusExporter) RecordTurn(cacheType string, latency time.Duration) {
	if cacheType == "" {
		cacheType = "none"
	}
	e.turnLatency.WithLabelValues(cacheType).Observe(latency.Seconds())
	e.turnRequests.WithLabelValues(cacheType).Inc()
}

// RecordStage records one pipeline stage latency.
func (e *PrometheusExporter) RecordStage(stage string, latency time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit for a tier.
func (e *PrometheusExporter) RecordCacheHit(tier string) {
	e.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss for a tier.
func (e *PrometheusExporter) RecordCacheMiss(tier string) {
	e.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordReconcile records a triggered reconcile.
func (e *PrometheusExporter) RecordReconcile() {
	e.reconciles.Inc()
}

// RecordProviderWin records a race win for a provider.
func (e *PrometheusExporter) RecordProviderWin(provider string) {
	e.providerWins.WithLabelValues(provider).Inc()
}

// RecordProviderError records a provider error.
func (e *PrometheusExporter) RecordProviderError(provider string) {
	e.providerErrors.WithLabelValues(provider).Inc()
}

// SetActiveSessions updates the live session gauge.
func (e *PrometheusExporter) SetActiveSessions(n int) {
	e.activeSessions.Set(float64(n))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
