// Package metrics expone las metricas Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups cuenta lecturas del cache compartido por resultado (hit, miss, expired, corrupt, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "encounters",
			Name:      "shared_cache_lookups_total",
			Help:      "Shared product cache lookups by result",
		},
		[]string{"category", "result"},
	)

	// CacheWrites cuenta escrituras por resultado (stored, skipped_empty, skipped_imageless, error).
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "encounters",
			Name:      "shared_cache_writes_total",
			Help:      "Shared product cache writes by result",
		},
		[]string{"category", "result"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "encounters",
			Name:      "upstream_requests_total",
			Help:      "Upstream catalog requests by source and status",
		},
		[]string{"source", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "encounters",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream catalog request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// BreakerState refleja el estado del circuit breaker por fuente (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "encounters",
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state per upstream source",
		},
		[]string{"source"},
	)

	ClickEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "encounters",
			Name:      "click_events_total",
			Help:      "Click log writes by status",
		},
		[]string{"status"},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "encounters",
			Name:      "recommend_duration_seconds",
			Help:      "End-to-end recommendation latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"category", "outcome"},
	)
)

// RecordUpstream registra una llamada a un catalogo externo.
func RecordUpstream(source, status string, seconds float64) {
	UpstreamRequests.WithLabelValues(source, status).Inc()
	UpstreamDuration.WithLabelValues(source).Observe(seconds)
}
