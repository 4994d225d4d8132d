package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/haldorsen/norn/internal/domain"
)

const templateColumns = `id, name, description, type, template_data,
	default_terms, default_notes, is_active, created_by, updated_by,
	created_at, updated_at`

func scanTemplate(row rowScanner) (*domain.InvoiceTemplate, error) {
	var t domain.InvoiceTemplate
	var data []byte

	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Type, &data,
		&t.DefaultTerms, &t.DefaultNotes, &t.IsActive, &t.CreatedBy, &t.UpdatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(data, &t.TemplateData); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate inserts a template row.
func (q *Queries) CreateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error {
	data, err := toJSON(t.TemplateData)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO invoice_templates (
			id, name, description, type, template_data,
			default_terms, default_notes, is_active, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Name, t.Description, t.Type, data,
		t.DefaultTerms, t.DefaultNotes, t.IsActive, t.CreatedBy,
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTemplate retrieves a template by ID.
func (q *Queries) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.InvoiceTemplate, error) {
	row := q.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM invoice_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if isNoRows(err) {
		return nil, domain.ErrTemplateNotFound
	}
	return t, err
}

// ListTemplates returns templates, newest first.
func (q *Queries) ListTemplates(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.InvoiceTemplate, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `SELECT ` + templateColumns + ` FROM invoice_templates`
	args := []any{}
	if activeOnly {
		sql += ` WHERE is_active`
	}
	sql += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	args = append(args, limit, offset)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InvoiceTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateTemplate writes back a template row.
func (q *Queries) UpdateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error {
	data, err := toJSON(t.TemplateData)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE invoice_templates SET
			name = $2, description = $3, template_data = $4,
			default_terms = $5, default_notes = $6, is_active = $7,
			updated_by = $8, updated_at = now()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, data,
		t.DefaultTerms, t.DefaultNotes, t.IsActive,
		t.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

// DeleteTemplate removes a template row.
func (q *Queries) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM invoice_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}
