// Package metrics provides Prometheus metrics for srtoolkit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NCBIRequestsTotal counts outbound E-utilities requests.
	NCBIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srtoolkit",
			Name:      "ncbi_requests_total",
			Help:      "Total number of NCBI E-utilities requests",
		},
		[]string{"endpoint", "status"},
	)

	// NCBIRequestDuration measures outbound request latency.
	NCBIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "srtoolkit",
			Name:      "ncbi_request_duration_seconds",
			Help:      "Duration of NCBI E-utilities requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CacheLookupsTotal counts memo cache lookups by outcome.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srtoolkit",
			Name:      "cache_lookups_total",
			Help:      "Total number of memo cache lookups",
		},
		[]string{"cache", "result"},
	)

	// PipelineWarningsTotal counts degraded pipeline stages.
	PipelineWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srtoolkit",
			Name:      "pipeline_warnings_total",
			Help:      "Total number of non-fatal pipeline warnings",
		},
		[]string{"stage"},
	)
)

// RecordNCBIRequest records one outbound request.
func RecordNCBIRequest(endpoint, status string, seconds float64) {
	NCBIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	NCBIRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordCacheHit records a memo cache hit.
func RecordCacheHit(cache string) {
	CacheLookupsTotal.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a memo cache miss.
func RecordCacheMiss(cache string) {
	CacheLookupsTotal.WithLabelValues(cache, "miss").Inc()
}

// RecordWarning records a pipeline warning for a stage.
func RecordWarning(stage string) {
	PipelineWarningsTotal.WithLabelValues(stage).Inc()
}
