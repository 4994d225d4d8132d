package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Invoice lifecycle
	InvoicesCreated     *prometheus.CounterVec
	InvoicesTransitions *prometheus.CounterVec
	InvoiceValue        *prometheus.HistogramVec

	// Payments
	PaymentsRecorded *prometheus.CounterVec
	PaymentAmount    *prometheus.CounterVec
	RefundsIssued    *prometheus.CounterVec
	RefundAmount     *prometheus.CounterVec

	// Recurring generation
	RecurringGenerated *prometheus.CounterVec
	RecurringFailed    *prometheus.CounterVec

	// Bulk operations
	BulkItems *prometheus.CounterVec

	// Reminders
	RemindersSent   *prometheus.CounterVec
	RemindersFailed *prometheus.CounterVec

	// Exports
	ExportsCompleted *prometheus.CounterVec
	ExportsFailed    *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec

	// Worker passes
	WorkerPasses       *prometheus.CounterVec
	WorkerPassDuration *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "norn"
	}

	subsystem := "business"

	return &BusinessMetrics{
		InvoicesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_created_total",
				Help:      "Total invoices created",
			},
			[]string{"type"},
		),
		InvoicesTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoice_transitions_total",
				Help:      "Total invoice lifecycle transitions",
			},
			[]string{"to_status"},
		),
		InvoiceValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoice_value_cents",
				Help:      "Invoice total distribution in cents",
				Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
			},
			[]string{"type"},
		),
		PaymentsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_recorded_total",
				Help:      "Total payments recorded",
			},
			[]string{"method"},
		),
		PaymentAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_amount_cents",
				Help:      "Total payment amount collected in cents",
			},
			[]string{"method"},
		),
		RefundsIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refunds_issued_total",
				Help:      "Total refunds issued",
			},
			[]string{"method"},
		),
		RefundAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refund_amount_cents",
				Help:      "Total refund amount in cents",
			},
			[]string{"method"},
		),
		RecurringGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recurring_invoices_generated_total",
				Help:      "Total invoices generated from recurring schedules",
			},
			[]string{"frequency"},
		),
		RecurringFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "recurring_generation_failed_total",
				Help:      "Total recurring generation failures",
			},
			[]string{"frequency"},
		),
		BulkItems: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bulk_items_total",
				Help:      "Total bulk operation items by outcome",
			},
			[]string{"operation", "outcome"}, // outcome: success, failure
		),
		RemindersSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reminders_sent_total",
				Help:      "Total payment reminders sent",
			},
			[]string{"type"},
		),
		RemindersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reminders_failed_total",
				Help:      "Total reminder delivery failures",
			},
			[]string{"type"},
		),
		ExportsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "exports_completed_total",
				Help:      "Total exports completed",
			},
			[]string{"format"},
		),
		ExportsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "exports_failed_total",
				Help:      "Total export failures",
			},
			[]string{"format"},
		),
		ExportDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "export_duration_seconds",
				Help:      "Export rendering and upload duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format"},
		),
		WorkerPasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "worker_passes_total",
				Help:      "Total background worker passes by outcome",
			},
			[]string{"pass", "outcome"},
		),
		WorkerPassDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "worker_pass_duration_seconds",
				Help:      "Background worker pass duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"pass"},
		),
	}
}

// Business is the global instance for easy access from services.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
