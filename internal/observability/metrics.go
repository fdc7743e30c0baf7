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
	// Ingestion metrics
	TransactionsIngested prometheus.Counter
	IngestRowsSkipped    *prometheus.CounterVec

	// Transfer matcher metrics
	MatchesCreated       *prometheus.CounterVec
	WithdrawalsUnmatched prometheus.Counter
	MatcherRunDuration   prometheus.Histogram

	// Calculation metrics
	CalculationsRun        *prometheus.CounterVec
	GainItemsEmitted       prometheus.Counter
	CalculationDuration    prometheus.Histogram
	UnknownBasisRemainders prometheus.Counter

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_tax_ledger"
	}

	return &Metrics{
		// Ingestion metrics
		TransactionsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "transactions_ingested_total",
			Help:      "Total number of normalized transactions ingested",
		}),
		IngestRowsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_skipped_total",
			Help:      "Total number of skipped input rows by reason",
		}, []string{"reason"}),

		// Transfer matcher metrics
		MatchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "matches_created_total",
			Help:      "Total number of transfer matches created by method",
		}, []string{"method"}),
		WithdrawalsUnmatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "withdrawals_unmatched_total",
			Help:      "Total number of withdrawals left unmatched after a run",
		}),
		MatcherRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "run_duration_seconds",
			Help:      "Transfer matcher run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Calculation metrics
		CalculationsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "taxlot",
			Name:      "calculations_total",
			Help:      "Total number of calculation runs by accounting method",
		}, []string{"method"}),
		GainItemsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "taxlot",
			Name:      "gain_items_emitted_total",
			Help:      "Total number of capital gain items emitted",
		}),
		CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "taxlot",
			Name:      "calculation_duration_seconds",
			Help:      "Calculation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		UnknownBasisRemainders: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "taxlot",
			Name:      "unknown_basis_remainders_total",
			Help:      "Total number of disposals that exhausted all lots for their asset",
		}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
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

// RecordMatchCreated increments the matches created counter for a method.
func RecordMatchCreated(method string) {
	DefaultMetrics.MatchesCreated.WithLabelValues(method).Inc()
}

// RecordWithdrawalUnmatched increments the unmatched withdrawals counter.
func RecordWithdrawalUnmatched() {
	DefaultMetrics.WithdrawalsUnmatched.Inc()
}

// RecordCalculation increments the calculations counter for a method.
func RecordCalculation(method string) {
	DefaultMetrics.CalculationsRun.WithLabelValues(method).Inc()
}

// RecordGainItems adds n to the gain items emitted counter.
func RecordGainItems(n int) {
	DefaultMetrics.GainItemsEmitted.Add(float64(n))
}

// RecordDBError records a database query error.
func RecordDBError(database, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
}
