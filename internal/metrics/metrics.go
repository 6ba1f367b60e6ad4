package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search agent Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinescout",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cinescout",
			Name:      "search_request_duration_seconds",
			Help:      "End-to-end search request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"mode"},
	)

	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinescout",
			Name:      "tool_executions_total",
			Help:      "Total number of agent tool executions",
		},
		[]string{"tool", "status"},
	)

	ModelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinescout",
			Name:      "model_calls_total",
			Help:      "Total number of language model completion calls",
		},
		[]string{"model", "phase", "status"},
	)

	CatalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinescout",
			Name:      "catalog_requests_total",
			Help:      "Total number of catalog provider requests",
		},
		[]string{"endpoint", "status"},
	)
)

// Register registers all metrics with the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SearchRequestsTotal,
		SearchRequestDuration,
		ToolExecutionsTotal,
		ModelCallsTotal,
		CatalogRequestsTotal,
	)
}
