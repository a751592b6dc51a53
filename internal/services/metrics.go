// Pipeline Prometheus metrics.
//
// Label cardinality is kept bounded: step names are a fixed set, statuses
// are PASS/FAIL, and upstream endpoints are configured constants rather
// than raw URLs.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// syncRuns counts orchestrator cycles by final status.
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync pipeline runs.",
		},
		[]string{"status"},
	)

	// syncStepDuration records per-step duration in seconds.
	syncStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_step_duration_seconds",
			Help:    "Duration of individual sync pipeline steps in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// upstreamCalls counts proxied aggregator calls by endpoint and outcome.
	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Total number of upstream aggregator API calls.",
		},
		[]string{"endpoint", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, syncStepDuration, upstreamCalls)
}
