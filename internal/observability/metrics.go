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
	// Sale operation metrics
	PurchasesTotal  prometheus.Counter
	QuotesTotal     prometheus.Counter
	SweepsTotal     prometheus.Counter
	OperationErrors *prometheus.CounterVec

	// Supply metrics
	TokensSoldTotal   prometheus.Counter
	CurrencyCollected prometheus.Counter
	RemainingSupply   prometheus.Gauge
	SaleActive        prometheus.Gauge

	// Latency metrics
	OperationDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_sale_lab"
	}

	return &Metrics{
		PurchasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "purchases_total",
			Help:      "Total number of committed purchases",
		}),
		QuotesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "quotes_total",
			Help:      "Total number of quote requests served",
		}),
		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "sweeps_total",
			Help:      "Total number of committed sweeps",
		}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "operation_errors_total",
			Help:      "Total number of failed operations by operation and error kind",
		}, []string{"operation", "kind"}),

		TokensSoldTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "tokens_sold_total",
			Help:      "Total tokens sold (may saturate float64 for very large sales)",
		}),
		CurrencyCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "currency_collected_total",
			Help:      "Total native currency forwarded to the treasury",
		}),
		RemainingSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "remaining_tokens",
			Help:      "Contract's current token balance",
		}),
		SaleActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "active",
			Help:      "1 while the deadline has not passed, 0 after",
		}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "operation_duration_seconds",
			Help:      "Sale operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
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

// RecordPurchase records a committed purchase and its sold amounts.
func RecordPurchase(tokensSold, currencyIn float64) {
	DefaultMetrics.PurchasesTotal.Inc()
	DefaultMetrics.TokensSoldTotal.Add(tokensSold)
	DefaultMetrics.CurrencyCollected.Add(currencyIn)
}

// RecordQuote increments the quote counter.
func RecordQuote() {
	DefaultMetrics.QuotesTotal.Inc()
}

// RecordSweep records a committed sweep.
func RecordSweep() {
	DefaultMetrics.SweepsTotal.Inc()
}

// RecordOperationError records a failed operation by error kind.
func RecordOperationError(operation, kind string) {
	DefaultMetrics.OperationErrors.WithLabelValues(operation, kind).Inc()
}

// UpdateRemainingSupply updates the remaining supply gauge.
func UpdateRemainingSupply(tokens float64) {
	DefaultMetrics.RemainingSupply.Set(tokens)
}

// UpdateSaleActive updates the sale state gauge.
func UpdateSaleActive(active bool) {
	if active {
		DefaultMetrics.SaleActive.Set(1)
	} else {
		DefaultMetrics.SaleActive.Set(0)
	}
}

// RecordOperationDuration records sale operation latency.
func RecordOperationDuration(operation string, seconds float64) {
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
