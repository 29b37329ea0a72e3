package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search backend Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchdex",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend operations",
		},
		[]string{"backend", "op", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchdex",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)

	IndexingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchdex",
			Name:      "indexing_failures_total",
			Help:      "Objects skipped during batch updates because they failed to prepare",
		},
		[]string{"backend", "content_type"},
	)

	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchdex",
			Name:      "documents_indexed_total",
			Help:      "Documents submitted to the search backend",
		},
		[]string{"backend", "content_type"},
	)

	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchdex",
			Name:      "search_hits",
			Help:      "Total hit count reported per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"backend"},
	)
)

var backendMetricsRegistered bool

// RegisterBackendMetrics registers Prometheus backend metrics. Must be called once from main.
func RegisterBackendMetrics() {
	if backendMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(IndexingFailuresTotal)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(SearchHits)
	backendMetricsRegistered = true
}
