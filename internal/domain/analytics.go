package domain

import (
	"context"
	"time"
)

// InvoiceSummaryStats aggregates portfolio-level invoice figures.
type InvoiceSummaryStats struct {
	TotalInvoices    int64                   `json:"total_invoices"`
	CountByStatus    map[InvoiceStatus]int64 `json:"count_by_status"`
	TotalCents       int64                   `json:"total_cents"`
	PaidCents        int64                   `json:"paid_cents"`
	OutstandingCents int64                   `json:"outstanding_cents"`
	OverdueCents     int64                   `json:"overdue_cents"`
	AverageCents     int64                   `json:"average_cents"`
	PaymentRate      float64                 `json:"payment_rate"` // paid / total, 0..1
}

// AgingBucket is one band of the receivables aging report.
type AgingBucket struct {
	Label            string `json:"label"` // "0-30", "31-60", "61-90", "90+"
	Count            int64  `json:"count"`
	OutstandingCents int64  `json:"outstanding_cents"`
}

// RevenuePoint is collected revenue for one day.
type RevenuePoint struct {
	Date       time.Time `json:"date"`
	PaidCents  int64     `json:"paid_cents"`
	Payments   int64     `json:"payments"`
}

// AnalyticsService reports on the invoice portfolio.
type AnalyticsService interface {
	// Summary returns portfolio-level figures. Results may be served from
	// a short-lived cache.
	Summary(ctx context.Context) (*InvoiceSummaryStats, error)

	// AgingReport buckets outstanding balances by days overdue.
	AgingReport(ctx context.Context) ([]AgingBucket, error)

	// RevenueTrends returns per-day collected revenue between from and to.
	RevenueTrends(ctx context.Context, from, to time.Time) ([]RevenuePoint, error)

	// InvalidateSummary drops any cached summary after a sweep that
	// changed many invoices at once.
	InvalidateSummary(ctx context.Context)
}
