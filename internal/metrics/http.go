package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StubAPI exports metrics of the stub GraphQL server.
var StubAPI = HTTPServerExporter{
	total: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stub",
			Name:      "http_requests_total",
			Help:      "How many HTTP requests were handled by the stub server.",
		},
		[]string{"method", "path", "status"},
	),
	duration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stub",
			Name:      "http_request_duration_seconds",
			Help:      "How long it took to handle the request.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path", "status"},
	),
}

type HTTPServerExporter struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func (r *HTTPServerExporter) NewRequest(method string, path string, status string, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}

	r.total.With(labels).Inc()
	r.duration.With(labels).Observe(duration.Seconds())
}
