package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/haldorsen/norn/internal/domain"
)

// CreateAuditEntry appends an immutable audit trail row. Called inside
// the same transaction as the change it records.
func (q *Queries) CreateAuditEntry(ctx context.Context, e *domain.AuditEntry) error {
	var oldValues, newValues []byte
	var err error
	if e.OldValues != nil {
		if oldValues, err = toJSON(e.OldValues); err != nil {
			return err
		}
	}
	if e.NewValues != nil {
		if newValues, err = toJSON(e.NewValues); err != nil {
			return err
		}
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO invoice_audit_trail (
			id, invoice_id, action, description, old_values, new_values,
			ip_address, user_agent, performed_by, performed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.InvoiceID, e.Action, e.Description, oldValues, newValues,
		e.IPAddress, e.UserAgent, e.PerformedBy, e.PerformedAt,
	)
	return err
}

// ListAuditTrail returns an invoice's audit entries, newest first.
func (q *Queries) ListAuditTrail(ctx context.Context, invoiceID uuid.UUID, limit, offset int32) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, action, description, old_values, new_values,
		       ip_address, user_agent, performed_by, performed_at
		FROM invoice_audit_trail
		WHERE invoice_id = $1
		ORDER BY performed_at DESC
		LIMIT $2 OFFSET $3`,
		invoiceID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var oldValues, newValues []byte
		err := rows.Scan(
			&e.ID, &e.InvoiceID, &e.Action, &e.Description, &oldValues, &newValues,
			&e.IPAddress, &e.UserAgent, &e.PerformedBy, &e.PerformedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := fromJSON(oldValues, &e.OldValues); err != nil {
			return nil, err
		}
		if err := fromJSON(newValues, &e.NewValues); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
