// Package metrics provides Prometheus metrics for the core engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the core engine. A nil
// *Metrics is legal everywhere it is threaded through: every Record and
// Set method returns early on a nil receiver, per §5.4.
type Metrics struct {
	// Blob store metrics (put/get)
	BlobOperationsTotal   *prometheus.CounterVec
	BlobOperationDuration *prometheus.HistogramVec
	BlobBytesTotal        *prometheus.CounterVec

	// Delta codec metrics
	DeltaCreateDuration prometheus.Histogram
	DeltaApplyDuration  prometheus.Histogram
	DeltaSavingsRatio   prometheus.Histogram

	// Crosslink engine metrics
	CrosslinkSessionsTotal  *prometheus.CounterVec
	CrosslinkDuration       prometheus.Histogram
	CrosslinkListenerErrors *prometheus.CounterVec

	// Checkout engine metrics (checkout/commit/revert)
	CheckoutOperationsTotal   *prometheus.CounterVec
	CheckoutOperationDuration *prometheus.HistogramVec

	// Storage-layer transaction metrics
	DBTransactionsTotal   *prometheus.CounterVec
	DBTransactionDuration *prometheus.HistogramVec
	DBStatementCacheSize  prometheus.Gauge
}

// namespace for all core-engine metrics.
const namespace = "fslcore"

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		BlobOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "blob",
				Name:      "operations_total",
				Help:      "Total number of blob store operations, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		BlobOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "blob",
				Name:      "operation_duration_seconds",
				Help:      "Blob store operation duration in seconds.",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		BlobBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "blob",
				Name:      "bytes_total",
				Help:      "Total bytes processed by blob store operations.",
			},
			[]string{"operation"},
		),

		DeltaCreateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "delta",
				Name:      "create_duration_seconds",
				Help:      "Delta construction duration in seconds.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		DeltaApplyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "delta",
				Name:      "apply_duration_seconds",
				Help:      "Delta application duration in seconds.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		DeltaSavingsRatio: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "delta",
				Name:      "savings_ratio",
				Help:      "Fraction of source size saved by delta encoding (1 - delta size / source size).",
				Buckets:   []float64{0, .1, .25, .5, .75, .9, .95, .99, 1},
			},
		),

		CrosslinkSessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "crosslink",
				Name:      "sessions_total",
				Help:      "Total number of crosslink sessions, by outcome.",
			},
			[]string{"outcome"},
		),
		CrosslinkDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "crosslink",
				Name:      "duration_seconds",
				Help:      "Crosslink session duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		CrosslinkListenerErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "crosslink",
				Name:      "listener_errors_total",
				Help:      "Total number of listener errors that poisoned a crosslink session, by listener name.",
			},
			[]string{"listener"},
		),

		CheckoutOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "operations_total",
				Help:      "Total number of checkout engine operations, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		CheckoutOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "operation_duration_seconds",
				Help:      "Checkout engine operation duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		DBTransactionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "transactions_total",
				Help:      "Total number of storage transactions, by outcome.",
			},
			[]string{"outcome"},
		),
		DBTransactionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "transaction_duration_seconds",
				Help:      "Storage transaction duration in seconds.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"outcome"},
		),
		DBStatementCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "statement_cache_size",
				Help:      "Current number of prepared statements held in the statement cache.",
			},
		),
	}

	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBlobOperation records a blob store operation outcome.
func (m *Metrics) RecordBlobOperation(operation, outcome string, duration float64, bytes int64) {
	if m == nil {
		return
	}
	m.BlobOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.BlobOperationDuration.WithLabelValues(operation).Observe(duration)
	if bytes > 0 {
		m.BlobBytesTotal.WithLabelValues(operation).Add(float64(bytes))
	}
}

// RecordDeltaCreate records a delta construction and its savings ratio.
func (m *Metrics) RecordDeltaCreate(duration float64, sourceSize, deltaSize int) {
	if m == nil {
		return
	}
	m.DeltaCreateDuration.Observe(duration)
	if sourceSize > 0 {
		m.DeltaSavingsRatio.Observe(1 - float64(deltaSize)/float64(sourceSize))
	}
}

// RecordDeltaApply records a delta application.
func (m *Metrics) RecordDeltaApply(duration float64) {
	if m == nil {
		return
	}
	m.DeltaApplyDuration.Observe(duration)
}

// RecordCrosslinkSession records a crosslink session outcome.
func (m *Metrics) RecordCrosslinkSession(outcome string, duration float64) {
	if m == nil {
		return
	}
	m.CrosslinkSessionsTotal.WithLabelValues(outcome).Inc()
	m.CrosslinkDuration.Observe(duration)
}

// RecordCrosslinkListenerError records a listener failure that poisoned
// a crosslink session.
func (m *Metrics) RecordCrosslinkListenerError(listener string) {
	if m == nil {
		return
	}
	m.CrosslinkListenerErrors.WithLabelValues(listener).Inc()
}

// RecordCheckoutOperation records a checkout engine operation outcome.
func (m *Metrics) RecordCheckoutOperation(operation, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.CheckoutOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.CheckoutOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDBTransaction records a storage transaction outcome.
func (m *Metrics) RecordDBTransaction(outcome string, duration float64) {
	if m == nil {
		return
	}
	m.DBTransactionsTotal.WithLabelValues(outcome).Inc()
	m.DBTransactionDuration.WithLabelValues(outcome).Observe(duration)
}

// SetStatementCacheSize reports the current number of cached prepared
// statements.
func (m *Metrics) SetStatementCacheSize(n int) {
	if m == nil {
		return
	}
	m.DBStatementCacheSize.Set(float64(n))
}
