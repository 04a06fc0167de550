package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queryRequestsTotal, tasksTotal) }

var (
	queryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_requests_total",
			Help: "Queries answered, labeled by outcome.",
		},
		[]string{"outcome"}, // 'answered', 'fallback', 'error'
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_total",
			Help: "Queue deliveries, labeled by the consumer's decision.",
		},
		[]string{"decision"}, // 'ack', 'requeue', 'dead_letter'
	)
)

func IncQuery(outcome string) {
	queryRequestsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncTask(decision string) {
	tasksTotal.WithLabelValues(norm(decision)).Inc()
}
