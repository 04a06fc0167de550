package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo, jobCacheLookups, dbPoolConns) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ragengine_build_info",
			Help: "Always 1; labels carry the version, commit and Go runtime.",
		},
		[]string{"version", "commit", "goversion"},
	)

	jobCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_cache_lookups_total",
			Help: "Reads served by the terminal-job cache.",
		},
		[]string{"result"}, // hit | miss | error
	)

	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func IncJobCacheLookup(result string) {
	jobCacheLookups.WithLabelValues(norm(result)).Inc()
}

// SetDBPool publishes a pool snapshot.
func SetDBPool(acquired, idle, total, max int32) {
	for state, n := range map[string]int32{"acquired": acquired, "idle": idle, "total": total, "max": max} {
		dbPoolConns.WithLabelValues(state).Set(float64(n))
	}
}
