package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a single GraphQL exchange.
const (
	OutcomeData      = "data"
	OutcomeErrors    = "graphql_errors"
	OutcomeTransport = "transport_error"
	OutcomeParse     = "parse_error"
)

var GraphQLClient = GraphQLClientExporter{
	total: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smoketest",
			Name:      "graphql_requests_total",
			Help:      "How many GraphQL requests were sent, partitioned by operation type and outcome.",
		},
		[]string{"endpoint", "operation", "outcome"},
	),
	duration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smoketest",
			Name:      "graphql_request_duration_seconds",
			Help:      "How long it took to get a GraphQL response.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "operation", "outcome"},
	),
}

type GraphQLClientExporter struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func (r *GraphQLClientExporter) Observe(endpoint string, operation string, outcome string, startedAt time.Time) {
	labels := prometheus.Labels{
		"endpoint":  endpoint,
		"operation": operation,
		"outcome":   outcome,
	}

	r.total.With(labels).Inc()
	r.duration.With(labels).Observe(time.Since(startedAt).Seconds())
}
