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
	// Action metrics
	ActionsApplied  *prometheus.CounterVec
	ActionsRejected *prometheus.CounterVec
	InlineActions   prometheus.Counter
	ActionLatency   *prometheus.HistogramVec

	// Ledger metrics
	TokenSupply *prometheus.GaugeVec

	// Notification metrics
	NotificationsDelivered prometheus.Counter
	NotificationsDropped   prometheus.Counter
	WSSubscribers          prometheus.Gauge

	// Journal metrics
	JournalAppendErrors prometheus.Counter
	LastSequence        prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_ledger"
	}

	return &Metrics{
		// Action metrics
		ActionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "applied_total",
			Help:      "Total number of actions committed",
		}, []string{"action"}),
		ActionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "rejected_total",
			Help:      "Total number of actions rejected, by error kind",
		}, []string{"action", "kind"}),
		InlineActions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "inline_total",
			Help:      "Total number of inline actions committed",
		}),
		ActionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "latency_seconds",
			Help:      "Action apply latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),

		// Ledger metrics
		TokenSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "supply",
			Help:      "Circulating supply per symbol, in scaled units",
		}, []string{"symbol"}),

		// Notification metrics
		NotificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Total number of notifications delivered to subscribers",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Total number of notifications dropped for slow subscribers",
		}),
		WSSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "ws_subscribers",
			Help:      "Current number of websocket subscribers",
		}),

		// Journal metrics
		JournalAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "append_errors_total",
			Help:      "Total number of failed journal appends",
		}),
		LastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "last_sequence",
			Help:      "Sequence of the last committed action",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordActionApplied records a committed action and its latency.
func RecordActionApplied(action string, seconds float64, inline int) {
	DefaultMetrics.ActionsApplied.WithLabelValues(action).Inc()
	DefaultMetrics.ActionLatency.WithLabelValues(action).Observe(seconds)
	DefaultMetrics.InlineActions.Add(float64(inline))
}

// RecordActionRejected records a rejected action by error kind.
func RecordActionRejected(action, kind string) {
	DefaultMetrics.ActionsRejected.WithLabelValues(action, kind).Inc()
}

// UpdateSupply sets the supply gauge of a symbol.
func UpdateSupply(symbol string, value int64) {
	DefaultMetrics.TokenSupply.WithLabelValues(symbol).Set(float64(value))
}

// RecordNotification records a delivered or dropped notification.
func RecordNotification(delivered bool) {
	if delivered {
		DefaultMetrics.NotificationsDelivered.Inc()
		return
	}
	DefaultMetrics.NotificationsDropped.Inc()
}

// UpdateSubscribers sets the websocket subscriber gauge.
func UpdateSubscribers(n int) {
	DefaultMetrics.WSSubscribers.Set(float64(n))
}

// RecordJournal records the outcome of a journal append.
func RecordJournal(lastSequence uint64, err error) {
	if err != nil {
		DefaultMetrics.JournalAppendErrors.Inc()
		return
	}
	DefaultMetrics.LastSequence.Set(float64(lastSequence))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
