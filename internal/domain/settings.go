package domain

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceSettings is the singleton configuration row driving numbering,
// defaults, and reminder behavior.
type InvoiceSettings struct {
	ID                  uuid.UUID `json:"id"`
	DefaultCurrency     string    `json:"default_currency"`
	DefaultPaymentTerms int       `json:"default_payment_terms"` // days until due
	AutoGenerateNumbers bool      `json:"auto_generate_numbers"`
	NumberPrefix        string    `json:"number_prefix"`
	NextNumber          int64     `json:"next_number"`
	DefaultTerms        string    `json:"default_terms,omitempty"`
	DefaultNotes        string    `json:"default_notes,omitempty"`
	EnableReminders     bool      `json:"enable_reminders"`
	ReminderSchedule    []int     `json:"reminder_schedule"` // days before due
	LateFeePercentage   float64   `json:"late_fee_percentage"`
	EnableLateFees      bool      `json:"enable_late_fees"`
	LogoURL             string    `json:"logo_url,omitempty"`
	CompanyDetails      *Contact  `json:"company_details,omitempty"`
	UpdatedBy           uuid.UUID `json:"updated_by"`
}

// SettingsService manages invoice settings and invoice number allocation.
type SettingsService interface {
	// GetSettings returns the settings row, creating defaults on first use.
	GetSettings(ctx context.Context) (*InvoiceSettings, error)

	// UpdateSettings applies partial updates to the settings row.
	UpdateSettings(ctx context.Context, params UpdateSettingsParams) (*InvoiceSettings, error)

	// NextInvoiceNumber allocates the next invoice number atomically.
	// Concurrent callers never receive the same number.
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// UpdateSettingsParams contains the updatable settings fields.
// Nil pointers leave the field unchanged.
type UpdateSettingsParams struct {
	DefaultCurrency     *string
	DefaultPaymentTerms *int
	AutoGenerateNumbers *bool
	NumberPrefix        *string
	NextNumber          *int64
	DefaultTerms        *string
	DefaultNotes        *string
	EnableReminders     *bool
	ReminderSchedule    []int
	LateFeePercentage   *float64
	EnableLateFees      *bool
	LogoURL             *string
	CompanyDetails      *Contact
	UpdatedBy           uuid.UUID
}
