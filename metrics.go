package gantry

import "github.com/prometheus/client_golang/prometheus"

var (
	// executionsTotal counts pipeline executions by operation and outcome.
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_executions_total",
			Help: "Pipeline executions",
		},
		[]string{"operation", "outcome"},
	)

	// rejectionsTotal counts rejections by operation and classified kind.
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_rejections_total",
			Help: "Classified rejections",
		},
		[]string{"operation", "kind"},
	)

	// rateLimitRejectedTotal counts admissions denied by the rate limiter.
	rateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"operation"},
	)

	// executionDuration records end-to-end pipeline duration in seconds.
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gantry_execution_duration_seconds",
			Help:    "Pipeline execution duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		executionsTotal,
		rejectionsTotal,
		rateLimitRejectedTotal,
		executionDuration,
	)
}
