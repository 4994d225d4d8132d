package repository

import (
	"context"
	"time"

	"github.com/haldorsen/norn/internal/domain"
)

// GetInvoiceSummaryStats aggregates portfolio-level figures in one round
// trip plus a per-status count query.
func (q *Queries) GetInvoiceSummaryStats(ctx context.Context) (*domain.InvoiceSummaryStats, error) {
	stats := &domain.InvoiceSummaryStats{
		CountByStatus: make(map[domain.InvoiceStatus]int64),
	}

	err := q.db.QueryRow(ctx, `
		SELECT
			count(*),
			COALESCE(sum(total_cents), 0),
			COALESCE(sum(paid_cents), 0),
			COALESCE(sum(balance_cents) FILTER (WHERE balance_cents > 0), 0),
			COALESCE(sum(balance_cents) FILTER (WHERE status = $1), 0),
			COALESCE(avg(total_cents), 0)::bigint
		FROM invoices`,
		domain.InvoiceStatusOverdue,
	).Scan(
		&stats.TotalInvoices,
		&stats.TotalCents,
		&stats.PaidCents,
		&stats.OutstandingCents,
		&stats.OverdueCents,
		&stats.AverageCents,
	)
	if err != nil {
		return nil, err
	}
	if stats.TotalCents > 0 {
		stats.PaymentRate = float64(stats.PaidCents) / float64(stats.TotalCents)
	}

	rows, err := q.db.Query(ctx, `SELECT status, count(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.InvoiceStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.CountByStatus[status] = count
	}
	return stats, rows.Err()
}

// GetAgingReport buckets outstanding balances by days past due at asOf.
func (q *Queries) GetAgingReport(ctx context.Context, asOf time.Time) ([]domain.AgingBucket, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			CASE
				WHEN $1::date - due_date <= 30 THEN '0-30'
				WHEN $1::date - due_date <= 60 THEN '31-60'
				WHEN $1::date - due_date <= 90 THEN '61-90'
				ELSE '90+'
			END AS bucket,
			count(*),
			COALESCE(sum(balance_cents), 0)
		FROM invoices
		WHERE balance_cents > 0
		  AND due_date < $1::date
		  AND status NOT IN ($2, $3, $4)
		GROUP BY bucket`,
		asOf,
		domain.InvoiceStatusCancelled, domain.InvoiceStatusVoided, domain.InvoiceStatusDraft,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byLabel := make(map[string]domain.AgingBucket)
	for rows.Next() {
		var b domain.AgingBucket
		if err := rows.Scan(&b.Label, &b.Count, &b.OutstandingCents); err != nil {
			return nil, err
		}
		byLabel[b.Label] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Always report all four bands, empty ones included.
	out := make([]domain.AgingBucket, 0, 4)
	for _, label := range []string{"0-30", "31-60", "61-90", "90+"} {
		b, ok := byLabel[label]
		if !ok {
			b = domain.AgingBucket{Label: label}
		}
		out = append(out, b)
	}
	return out, nil
}

// GetRevenueTrends returns per-day collected revenue between from and to.
func (q *Queries) GetRevenueTrends(ctx context.Context, from, to time.Time) ([]domain.RevenuePoint, error) {
	rows, err := q.db.Query(ctx, `
		SELECT payment_date::date, COALESCE(sum(amount_cents), 0), count(*)
		FROM invoice_payments
		WHERE status = $1
		  AND amount_cents > 0
		  AND payment_date >= $2
		  AND payment_date <= $3
		GROUP BY payment_date::date
		ORDER BY payment_date::date`,
		domain.PaymentStatusCompleted, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RevenuePoint
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.Date, &p.PaidCents, &p.Payments); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
