package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// ObservePoolStats copies the current pgx pool counters into the
// connection gauges. Called periodically by the app's metrics loop.
func ObservePoolStats(pool *pgxpool.Pool) {
	stats := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
}
