// Package metrics exposes Prometheus collectors for the scheduling core.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registeredSchedules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_scheduler_registered_schedules",
			Help: "Number of workflows currently registered with the schedule registry",
		},
	)

	firesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_scheduler_fires_total",
			Help: "Total number of dispatched schedule fires",
		},
		[]string{"status"},
	)

	overlapSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_scheduler_overlap_skips_total",
			Help: "Fires skipped because the previous execution was still running",
		},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_scheduler_dispatch_duration_seconds",
			Help:    "Workflow execution time as observed by the dispatcher",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// SetRegisteredSchedules records the current registry size.
func SetRegisteredSchedules(n int) {
	registeredSchedules.Set(float64(n))
}

// RecordFire records one dispatched fire and its observed duration.
func RecordFire(status string, seconds float64) {
	firesTotal.WithLabelValues(status).Inc()
	dispatchDuration.Observe(seconds)
}

// RecordOverlapSkip records a fire skipped by the overlap policy.
func RecordOverlapSkip() {
	overlapSkipsTotal.Inc()
}

// UpdateDBStats pushes connection pool stats into the DB gauges.
func UpdateDBStats(stats sql.DBStats) {
	dbConnectionsOpen.Set(float64(stats.OpenConnections))
	dbConnectionsInUse.Set(float64(stats.InUse))
	dbConnectionsIdle.Set(float64(stats.Idle))
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
