package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerMetrics carries all prometheus collectors for the ledger engine.
type LedgerMetrics struct {
	TransactionsCreatedTotal   *prometheus.CounterVec
	PaymentsAppliedTotal       *prometheus.CounterVec
	PaymentsAppliedAmountTotal *prometheus.CounterVec
	TransactionsCompletedTotal *prometheus.CounterVec
	TransitionsTotal           *prometheus.CounterVec
	TransitionErrorsTotal      *prometheus.CounterVec

	SweepProcessedTotal prometheus.Counter
	SweepFailedTotal    prometheus.Counter
	SweepDuration       prometheus.Histogram

	CountQueriesTotal  *prometheus.CounterVec
	ExportRowsTotal    *prometheus.CounterVec
	ExportBatchesTotal *prometheus.CounterVec
	ExportDuration     *prometheus.HistogramVec

	VersionConflictsTotal prometheus.Counter
}

func NewLedgerMetrics() *LedgerMetrics {
	return &LedgerMetrics{
		TransactionsCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_created_total",
				Help: "Transactions created, by type and initial status",
			},
			[]string{"type", "status"},
		),

		PaymentsAppliedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payments_applied_total",
				Help: "Settlement amounts applied to transactions, by outcome",
			},
			[]string{"outcome"},
		),

		PaymentsAppliedAmountTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payments_applied_amount_total",
				Help: "Total settled amount credited to transactions",
			},
			[]string{"type"},
		),

		TransactionsCompletedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_completed_total",
				Help: "Transactions that reached the completed status",
			},
			[]string{"type"},
		),

		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_status_transitions_total",
				Help: "Committed status transitions",
			},
			[]string{"from", "to"},
		),

		TransitionErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_status_transition_errors_total",
				Help: "Rejected status transitions, by reason",
			},
			[]string{"reason"},
		),

		SweepProcessedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_expiry_sweep_processed_total",
				Help: "Stale processing transactions demoted by the sweep",
			},
		),

		SweepFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_expiry_sweep_failed_total",
				Help: "Sweep items that failed to transition",
			},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_expiry_sweep_duration_seconds",
				Help:    "Wall time of a full expiry sweep run",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),

		CountQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_count_queries_total",
				Help: "countMatching calls, by path (cache/fast/cursor)",
			},
			[]string{"path"},
		),

		ExportRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_export_rows_total",
				Help: "Rows streamed by exportMatching",
			},
			[]string{"mode"},
		),

		ExportBatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_export_batches_total",
				Help: "Batch queries issued by exportMatching",
			},
			[]string{"mode"},
		),

		ExportDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_export_duration_seconds",
				Help:    "Wall time of a full export",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"mode"},
		),

		VersionConflictsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_version_conflicts_total",
				Help: "Optimistic-concurrency write conflicts that triggered a re-read",
			},
		),
	}
}
