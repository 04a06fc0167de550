package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiCallsLatencyMs,
		aiEmbeddedTextsTotal,
	)
}

var (
	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"provider", "model", "success"},
	)

	aiEmbeddedTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_embedded_texts_total",
			Help: "Texts sent to the embedding model per provider/model.",
		},
		[]string{"provider", "model"},
	)
)

func ObserveAICall(provider, model string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AddEmbeddedTexts(provider, model string, n int) {
	aiEmbeddedTextsTotal.WithLabelValues(norm(provider), norm(model)).Add(float64(n))
}
