package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docregistry_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docregistry_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// FilterCompilations counts filter compilations by outcome (ok, error).
	FilterCompilations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docregistry_filter_compilations_total",
			Help: "Total number of filter compilations",
		},
		[]string{"outcome"},
	)
	// FilterClauses is the number of leaf conditions per compiled filter.
	FilterClauses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docregistry_filter_clauses",
			Help:    "Leaf conditions per compiled filter",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)
	// QueryDuration is the latency of document queries by operation.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docregistry_query_duration_seconds",
			Help:    "Document query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// ObserveCompile records one filter compilation.
func ObserveCompile(clauses int, err error) {
	if err != nil {
		FilterCompilations.WithLabelValues("error").Inc()
		return
	}
	FilterCompilations.WithLabelValues("ok").Inc()
	FilterClauses.Observe(float64(clauses))
}
