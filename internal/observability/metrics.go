// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sync metrics
	SnapshotsSynced    prometheus.Counter
	SyncErrors         prometheus.Counter
	SyncDuration       prometheus.Histogram
	LastSuccessfulSync prometheus.Gauge

	// Engine metrics
	DiffsComputed      prometheus.Counter
	EntitiesNormalized prometheus.Counter
	UnresolvedOwners   prometheus.Counter
	WindowsAggregated  prometheus.Counter

	// Classification metrics
	HealthByStatus *prometheus.CounterVec
	AlertsByLevel  *prometheus.CounterVec

	// Search metrics
	SearchQueries  prometheus.Counter
	SearchDuration prometheus.Histogram

	// Stream metrics
	StreamSubscribers prometheus.Gauge
	EventsBroadcast   prometheus.Counter

	// Roster gauges
	TrackedClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rebstool"
	}

	return &Metrics{
		SnapshotsSynced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "snapshots_synced_total",
			Help:      "Total number of snapshots processed by the sync loop",
		}),
		SyncErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Total number of failed sync cycles",
		}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of one sync cycle in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful sync cycle",
		}),

		DiffsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "diffs_computed_total",
			Help:      "Total number of change-sets computed",
		}),
		EntitiesNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "entities_normalized_total",
			Help:      "Total number of client entities produced by normalization",
		}),
		UnresolvedOwners: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "unresolved_owners_total",
			Help:      "Total number of entities whose ownership fell back to the Unknown sentinel",
		}),
		WindowsAggregated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "windows_aggregated_total",
			Help:      "Total number of per-client window metrics computed",
		}),

		HealthByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "health_total",
			Help:      "Total number of rebate-health classifications by status",
		}, []string{"status"}),
		AlertsByLevel: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "withdrawal_alerts_total",
			Help:      "Total number of withdrawal alerts by level",
		}, []string{"level"}),

		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries served",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of one search query in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),

		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Current number of connected WebSocket subscribers",
		}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_broadcast_total",
			Help:      "Total number of alert events broadcast to subscribers",
		}),

		TrackedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "roster",
			Name:      "tracked_clients",
			Help:      "Number of clients in the latest snapshot",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSync records one sync cycle.
func RecordSync(seconds float64, err error) {
	if err != nil {
		DefaultMetrics.SyncErrors.Inc()
		return
	}
	DefaultMetrics.SnapshotsSynced.Inc()
	DefaultMetrics.SyncDuration.Observe(seconds)
}

// RecordHealth increments the health classification counter for a status.
func RecordHealth(status string) {
	DefaultMetrics.HealthByStatus.WithLabelValues(status).Inc()
}

// RecordAlert increments the withdrawal alert counter for a level.
func RecordAlert(level string) {
	DefaultMetrics.AlertsByLevel.WithLabelValues(level).Inc()
}

// RecordSearch records one search query.
func RecordSearch(seconds float64) {
	DefaultMetrics.SearchQueries.Inc()
	DefaultMetrics.SearchDuration.Observe(seconds)
}
