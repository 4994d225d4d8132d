package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/haldorsen/norn/internal/domain"
)

// CreateReminder inserts a reminder delivery record.
func (q *Queries) CreateReminder(ctx context.Context, r *domain.Reminder) error {
	var emails []byte
	var err error
	if r.AdditionalEmails != nil {
		if emails, err = toJSON(r.AdditionalEmails); err != nil {
			return err
		}
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO invoice_reminders (
			id, invoice_id, type, message, additional_emails,
			scheduled_for, sent_at, is_sent, error_message, created_by,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.InvoiceID, r.Type, r.Message, emails,
		r.ScheduledFor, r.SentAt, r.IsSent, r.ErrorMessage, r.CreatedBy,
		r.CreatedAt,
	)
	return err
}

// ListReminders returns an invoice's reminder history, newest first.
func (q *Queries) ListReminders(ctx context.Context, invoiceID uuid.UUID) ([]domain.Reminder, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, type, message, additional_emails,
		       scheduled_for, sent_at, is_sent, error_message, created_by,
		       created_at
		FROM invoice_reminders
		WHERE invoice_id = $1
		ORDER BY created_at DESC`,
		invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var emails []byte
		err := rows.Scan(
			&r.ID, &r.InvoiceID, &r.Type, &r.Message, &emails,
			&r.ScheduledFor, &r.SentAt, &r.IsSent, &r.ErrorMessage, &r.CreatedBy,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := fromJSON(emails, &r.AdditionalEmails); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
