package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/haldorsen/norn/internal/domain"
)

const exportColumns = `id, status, format, filter, total_records,
	processed_records, download_url, error_message, requested_by,
	completed_at, expires_at, created_at, updated_at`

func scanExport(row rowScanner) (*domain.InvoiceExport, error) {
	var e domain.InvoiceExport
	var filter []byte

	err := row.Scan(
		&e.ID, &e.Status, &e.Format, &filter, &e.TotalRecords,
		&e.ProcessedRecords, &e.DownloadURL, &e.ErrorMessage, &e.RequestedBy,
		&e.CompletedAt, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(filter, &e.Filter); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateExport inserts a pending export job.
func (q *Queries) CreateExport(ctx context.Context, e *domain.InvoiceExport) error {
	filter, err := toJSON(e.Filter)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO invoice_exports (
			id, status, format, filter, total_records, processed_records,
			download_url, error_message, requested_by, expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Status, e.Format, filter, e.TotalRecords, e.ProcessedRecords,
		e.DownloadURL, e.ErrorMessage, e.RequestedBy, e.ExpiresAt,
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetExport retrieves an export job by ID.
func (q *Queries) GetExport(ctx context.Context, id uuid.UUID) (*domain.InvoiceExport, error) {
	row := q.db.QueryRow(ctx, `SELECT `+exportColumns+` FROM invoice_exports WHERE id = $1`, id)
	e, err := scanExport(row)
	if isNoRows(err) {
		return nil, domain.ErrExportNotFound
	}
	return e, err
}

// ClaimNextPendingExport atomically moves the oldest pending export to
// processing and returns it. Returns nil when no work is pending.
// SKIP LOCKED keeps concurrent workers from claiming the same job.
func (q *Queries) ClaimNextPendingExport(ctx context.Context) (*domain.InvoiceExport, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE invoice_exports SET status = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM invoice_exports
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+exportColumns,
		domain.ExportStatusProcessing, domain.ExportStatusPending,
	)
	e, err := scanExport(row)
	if isNoRows(err) {
		return nil, nil
	}
	return e, err
}

// CompleteExport marks an export completed with its artifact URL.
func (q *Queries) CompleteExport(ctx context.Context, id uuid.UUID, downloadURL string, totalRecords int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoice_exports SET
			status = $2, download_url = $3, total_records = $4,
			processed_records = $4, completed_at = now(), updated_at = now()
		WHERE id = $1`,
		id, domain.ExportStatusCompleted, downloadURL, totalRecords,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrExportNotFound
	}
	return nil
}

// FailExport marks an export failed with an error message.
func (q *Queries) FailExport(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoice_exports SET
			status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, domain.ExportStatusFailed, errMsg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrExportNotFound
	}
	return nil
}
