package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, dbPoolAcquireTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Current state of the Postgres connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use', 'max'
	)

	dbPoolAcquireTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_acquire_count",
			Help: "Cumulative successful connection acquires reported by the pool.",
		},
	)
)

// PoolStats mirrors the subset of pgxpool.Stat we export.
type PoolStats struct {
	Total, Idle, InUse, Max int32
	Acquires                int64
}

func SetDBPoolStats(s PoolStats) {
	dbPoolStats.WithLabelValues("total").Set(float64(s.Total))
	dbPoolStats.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(s.InUse))
	dbPoolStats.WithLabelValues("max").Set(float64(s.Max))
	dbPoolAcquireTotal.Set(float64(s.Acquires))
}
