package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(fetchAttemptsTotal, fetchDurationSeconds) }

var (
	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "HTTP fetch attempts, labeled by outcome.",
		},
		[]string{"outcome"}, // 'ok', 'retry', 'permanent', 'exhausted'
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Wall time of a Fetch call including retries.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)
)

func IncFetchAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveFetchDuration(seconds float64) {
	fetchDurationSeconds.Observe(seconds)
}
