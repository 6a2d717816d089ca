package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Scenarios = ScenarioExporter{
	duration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smoketest",
			Name:      "scenario_duration_seconds",
			Help:      "How long it took to run a scenario, partitioned by scenario, target and status (passed or failed).",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"scenario", "target", "status"},
	),
}

type ScenarioExporter struct {
	duration *prometheus.HistogramVec
}

func (r *ScenarioExporter) Finished(scenario string, target string, passed bool, elapsed time.Duration) {
	status := "passed"
	if !passed {
		status = "failed"
	}

	r.duration.
		With(prometheus.Labels{
			"scenario": scenario,
			"target":   target,
			"status":   status,
		}).
		Observe(elapsed.Seconds())
}
