package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ingestJobsProcessedTotal,
		ingestAnomaliesTotal,
		ingestChunksTotal,
		ingestChunkTokens,
		ingestDurationSeconds,
	)
}

var (
	ingestJobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_processed_total",
			Help: "Total number of ingestion jobs processed, labeled by final status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	ingestAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_anomalies_total",
			Help: "Tasks whose job could not be claimed, labeled by reason.",
		},
		[]string{"kind"}, // 'not_found', 'busy', 'duplicate'
	)

	ingestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_chunks_total",
			Help: "Chunks written to the index.",
		},
	)

	ingestChunkTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_chunk_tokens",
			Help:    "Token count per stored chunk.",
			Buckets: []float64{16, 32, 64, 128, 192, 256, 384, 512},
		},
	)

	ingestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "End-to-end pipeline duration per job.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"status"},
	)
)

func IncIngestJob(status string) {
	ingestJobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncIngestAnomaly(kind string) {
	ingestAnomaliesTotal.WithLabelValues(norm(kind)).Inc()
}

func AddIngestChunks(n int) {
	ingestChunksTotal.Add(float64(n))
}

func ObserveChunkTokens(tokens int) {
	ingestChunkTokens.Observe(float64(tokens))
}

func ObserveIngestDuration(status string, seconds float64) {
	ingestDurationSeconds.WithLabelValues(norm(status)).Observe(seconds)
}
