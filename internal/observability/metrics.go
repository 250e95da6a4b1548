// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Bank metrics
	BalanceChangesApplied       *prometheus.CounterVec
	InsufficientFundsRejections *prometheus.CounterVec

	// Badge metrics
	BadgesMinted      prometheus.Counter
	BadgesTransferred prometheus.Counter
	TransferBatches   *prometheus.CounterVec
	TransferBatchSize prometheus.Histogram
	SpeciesLostEvents prometheus.Counter

	// Archive metrics
	TransactionsArchived prometheus.Counter
	ArchiveErrors        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pokeyen_ledger"
	}

	return &Metrics{
		BalanceChangesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bank",
			Name:      "balance_changes_applied_total",
			Help:      "Total number of balance changes applied by currency",
		}, []string{"currency"}),
		InsufficientFundsRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bank",
			Name:      "insufficient_funds_rejections_total",
			Help:      "Total number of withdrawals rejected by the reserved floor",
		}, []string{"currency"}),

		BadgesMinted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "minted_total",
			Help:      "Total number of badges minted",
		}),
		BadgesTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "transferred_total",
			Help:      "Total number of badges that changed owner",
		}),
		TransferBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "transfer_batches_total",
			Help:      "Total number of transfer batches by outcome",
		}, []string{"outcome"}),
		TransferBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "transfer_batch_size",
			Help:      "Number of badges per transfer batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		SpeciesLostEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "species_lost_events_total",
			Help:      "Total number of species-lost notifications published",
		}),

		TransactionsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "transactions_archived_total",
			Help:      "Total number of transaction-log entries copied to analytics storage",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of archiver failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
