package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/haldorsen/norn/internal/domain"
)

const recurringColumns = `id, template_id, customer_id, partner_id, bill_to, frequency,
	start_date, end_date, max_occurrences, current_occurrences,
	next_generation_date, is_active, auto_send, created_by, updated_by,
	created_at, updated_at`

func scanRecurring(row rowScanner) (*domain.RecurringInvoice, error) {
	var r domain.RecurringInvoice
	var billTo []byte
	err := row.Scan(
		&r.ID, &r.TemplateID, &r.CustomerID, &r.PartnerID, &billTo, &r.Frequency,
		&r.StartDate, &r.EndDate, &r.MaxOccurrences, &r.CurrentOccurrences,
		&r.NextGenerationDate, &r.IsActive, &r.AutoSend, &r.CreatedBy, &r.UpdatedBy,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(billTo, &r.BillTo); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRecurring inserts a recurring schedule row.
func (q *Queries) CreateRecurring(ctx context.Context, r *domain.RecurringInvoice) error {
	billTo, err := toJSON(r.BillTo)
	if err != nil {
		return err
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO recurring_invoices (
			id, template_id, customer_id, partner_id, bill_to, frequency,
			start_date, end_date, max_occurrences, current_occurrences,
			next_generation_date, is_active, auto_send, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.TemplateID, r.CustomerID, r.PartnerID, billTo, r.Frequency,
		r.StartDate, r.EndDate, r.MaxOccurrences, r.CurrentOccurrences,
		r.NextGenerationDate, r.IsActive, r.AutoSend, r.CreatedBy,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

// GetRecurring retrieves a schedule by ID.
func (q *Queries) GetRecurring(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_invoices WHERE id = $1`, id)
	r, err := scanRecurring(row)
	if isNoRows(err) {
		return nil, domain.ErrRecurringNotFound
	}
	return r, err
}

// GetRecurringForUpdate retrieves a schedule with a row lock. Must be
// called within a transaction.
func (q *Queries) GetRecurringForUpdate(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_invoices WHERE id = $1 FOR UPDATE`, id)
	r, err := scanRecurring(row)
	if isNoRows(err) {
		return nil, domain.ErrRecurringNotFound
	}
	return r, err
}

// ListRecurring returns schedules, newest first.
func (q *Queries) ListRecurring(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.RecurringInvoice, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `SELECT ` + recurringColumns + ` FROM recurring_invoices`
	if activeOnly {
		sql += ` WHERE is_active`
	}
	sql += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := q.db.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

// ListDueRecurring returns active schedules whose next generation date is
// due at asOf, oldest due first.
func (q *Queries) ListDueRecurring(ctx context.Context, asOf time.Time) ([]domain.RecurringInvoice, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+recurringColumns+` FROM recurring_invoices
		WHERE is_active
		  AND next_generation_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		  AND (max_occurrences IS NULL OR current_occurrences < max_occurrences)
		ORDER BY next_generation_date`,
		asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

// UpdateRecurring writes back a schedule row.
func (q *Queries) UpdateRecurring(ctx context.Context, r *domain.RecurringInvoice) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE recurring_invoices SET
			frequency = $2, start_date = $3, end_date = $4,
			max_occurrences = $5, current_occurrences = $6,
			next_generation_date = $7, is_active = $8, auto_send = $9,
			updated_by = $10, updated_at = now()
		WHERE id = $1`,
		r.ID, r.Frequency, r.StartDate, r.EndDate,
		r.MaxOccurrences, r.CurrentOccurrences,
		r.NextGenerationDate, r.IsActive, r.AutoSend,
		r.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecurringNotFound
	}
	return nil
}

func collectRecurring(rows pgx.Rows) ([]domain.RecurringInvoice, error) {
	var out []domain.RecurringInvoice
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
