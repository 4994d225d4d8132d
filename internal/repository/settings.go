package repository

import (
	"context"

	"github.com/haldorsen/norn/internal/domain"
)

const settingsColumns = `id, default_currency, default_payment_terms,
	auto_generate_numbers, number_prefix, next_number,
	default_terms, default_notes, enable_reminders, reminder_schedule,
	late_fee_percentage, enable_late_fees, logo_url, company_details,
	updated_by`

func scanSettings(row rowScanner) (*domain.InvoiceSettings, error) {
	var s domain.InvoiceSettings
	var schedule, company []byte

	err := row.Scan(
		&s.ID, &s.DefaultCurrency, &s.DefaultPaymentTerms,
		&s.AutoGenerateNumbers, &s.NumberPrefix, &s.NextNumber,
		&s.DefaultTerms, &s.DefaultNotes, &s.EnableReminders, &schedule,
		&s.LateFeePercentage, &s.EnableLateFees, &s.LogoURL, &company,
		&s.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(schedule, &s.ReminderSchedule); err != nil {
		return nil, err
	}
	if len(company) > 0 {
		s.CompanyDetails = &domain.Contact{}
		if err := fromJSON(company, s.CompanyDetails); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// GetSettings retrieves the singleton settings row.
func (q *Queries) GetSettings(ctx context.Context) (*domain.InvoiceSettings, error) {
	row := q.db.QueryRow(ctx, `SELECT `+settingsColumns+` FROM invoice_settings LIMIT 1`)
	s, err := scanSettings(row)
	if isNoRows(err) {
		return nil, domain.NotFound("Invoice settings not initialized")
	}
	return s, err
}

// CreateSettings inserts the settings row. ON CONFLICT DO NOTHING keeps
// concurrent first-use initialization idempotent.
func (q *Queries) CreateSettings(ctx context.Context, s *domain.InvoiceSettings) error {
	schedule, err := toJSON(s.ReminderSchedule)
	if err != nil {
		return err
	}
	var company []byte
	if s.CompanyDetails != nil {
		if company, err = toJSON(s.CompanyDetails); err != nil {
			return err
		}
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO invoice_settings (
			id, default_currency, default_payment_terms,
			auto_generate_numbers, number_prefix, next_number,
			default_terms, default_notes, enable_reminders, reminder_schedule,
			late_fee_percentage, enable_late_fees, logo_url, company_details,
			updated_by, singleton
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, true)
		ON CONFLICT (singleton) DO NOTHING`,
		s.ID, s.DefaultCurrency, s.DefaultPaymentTerms,
		s.AutoGenerateNumbers, s.NumberPrefix, s.NextNumber,
		s.DefaultTerms, s.DefaultNotes, s.EnableReminders, schedule,
		s.LateFeePercentage, s.EnableLateFees, s.LogoURL, company,
		s.UpdatedBy,
	)
	return err
}

// UpdateSettings writes back the settings row.
func (q *Queries) UpdateSettings(ctx context.Context, s *domain.InvoiceSettings) error {
	schedule, err := toJSON(s.ReminderSchedule)
	if err != nil {
		return err
	}
	var company []byte
	if s.CompanyDetails != nil {
		if company, err = toJSON(s.CompanyDetails); err != nil {
			return err
		}
	}

	tag, err := q.db.Exec(ctx, `
		UPDATE invoice_settings SET
			default_currency = $2, default_payment_terms = $3,
			auto_generate_numbers = $4, number_prefix = $5, next_number = $6,
			default_terms = $7, default_notes = $8, enable_reminders = $9,
			reminder_schedule = $10, late_fee_percentage = $11,
			enable_late_fees = $12, logo_url = $13, company_details = $14,
			updated_by = $15, updated_at = now()
		WHERE id = $1`,
		s.ID, s.DefaultCurrency, s.DefaultPaymentTerms,
		s.AutoGenerateNumbers, s.NumberPrefix, s.NextNumber,
		s.DefaultTerms, s.DefaultNotes, s.EnableReminders,
		schedule, s.LateFeePercentage,
		s.EnableLateFees, s.LogoURL, company,
		s.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Invoice settings not initialized")
	}
	return nil
}

// IncrementInvoiceNumber allocates the next invoice number in a single
// statement. The row-level write lock serializes concurrent allocations,
// so no two callers ever see the same number.
func (q *Queries) IncrementInvoiceNumber(ctx context.Context) (string, int64, error) {
	var prefix string
	var next int64
	err := q.db.QueryRow(ctx, `
		UPDATE invoice_settings
		SET next_number = next_number + 1, updated_at = now()
		RETURNING number_prefix, next_number - 1`,
	).Scan(&prefix, &next)
	if isNoRows(err) {
		return "", 0, domain.NotFound("Invoice settings not initialized")
	}
	return prefix, next, err
}
