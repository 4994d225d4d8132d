package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/haldorsen/norn/internal/domain"
)

const paymentColumns = `id, invoice_id, amount_cents, method, status,
	payment_date, reference, notes, bank_details, recorded_by,
	created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var bankDetails []byte

	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method, &p.Status,
		&p.PaymentDate, &p.Reference, &p.Notes, &bankDetails, &p.RecordedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(bankDetails, &p.BankDetails); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment appends a payment row to the ledger.
func (q *Queries) CreatePayment(ctx context.Context, p *domain.Payment) error {
	var bankDetails []byte
	if p.BankDetails != nil {
		var err error
		if bankDetails, err = toJSON(p.BankDetails); err != nil {
			return err
		}
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO invoice_payments (
			id, invoice_id, amount_cents, method, status,
			payment_date, reference, notes, bank_details, recorded_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.InvoiceID, p.AmountCents, p.Method, p.Status,
		p.PaymentDate, p.Reference, p.Notes, bankDetails, p.RecordedBy,
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPayment retrieves a payment by ID.
func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM invoice_payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if isNoRows(err) {
		return nil, domain.ErrPaymentNotFound
	}
	return p, err
}

// UpdatePaymentStatus changes a payment's status.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE invoice_payments SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// ListInvoicePayments returns the ledger for one invoice, oldest first.
func (q *Queries) ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM invoice_payments
		 WHERE invoice_id = $1 ORDER BY payment_date, created_at`,
		invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPayments(rows)
}

func buildPaymentWhere(filter domain.PaymentFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.InvoiceID != nil {
		add("invoice_id = $%d", *filter.InvoiceID)
	}
	if filter.Method != nil {
		add("method = $%d", *filter.Method)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		add("payment_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("payment_date <= $%d", *filter.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPayments returns payments across invoices matching the filter,
// newest first.
func (q *Queries) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	where, args := buildPaymentWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := len(args)
	args = append(args, filter.Offset)
	offsetArg := len(args)

	sql := fmt.Sprintf(`SELECT %s FROM invoice_payments%s ORDER BY payment_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, limitArg, offsetArg)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPayments(rows)
}

// CountPayments returns the number of payments matching the filter.
func (q *Queries) CountPayments(ctx context.Context, filter domain.PaymentFilter) (int64, error) {
	where, args := buildPaymentWhere(filter)
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM invoice_payments`+where, args...).Scan(&count)
	return count, err
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
