package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecurrenceFrequency is the cadence of a recurring schedule.
type RecurrenceFrequency string

const (
	FrequencyDaily     RecurrenceFrequency = "daily"
	FrequencyWeekly    RecurrenceFrequency = "weekly"
	FrequencyMonthly   RecurrenceFrequency = "monthly"
	FrequencyQuarterly RecurrenceFrequency = "quarterly"
	FrequencyYearly    RecurrenceFrequency = "yearly"
)

// IsValid reports whether f is a known frequency.
func (f RecurrenceFrequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringInvoice schedules repeated invoice generation from a template.
type RecurringInvoice struct {
	ID                 uuid.UUID           `json:"id"`
	TemplateID         uuid.UUID           `json:"template_id"`
	CustomerID         uuid.UUID           `json:"customer_id"`
	PartnerID          *uuid.UUID          `json:"partner_id,omitempty"`
	BillTo             Contact             `json:"bill_to"`
	Frequency          RecurrenceFrequency `json:"frequency"`
	StartDate          time.Time           `json:"start_date"`
	EndDate            *time.Time          `json:"end_date,omitempty"`
	MaxOccurrences     *int                `json:"max_occurrences,omitempty"`
	CurrentOccurrences int                 `json:"current_occurrences"`
	NextGenerationDate time.Time           `json:"next_generation_date"`
	IsActive           bool                `json:"is_active"`
	AutoSend           bool                `json:"auto_send"`
	CreatedBy          uuid.UUID           `json:"created_by"`
	UpdatedBy          *uuid.UUID          `json:"updated_by,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ShouldGenerate reports whether a generation is due at now.
func (r *RecurringInvoice) ShouldGenerate(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return false
	}
	if r.MaxOccurrences != nil && r.CurrentOccurrences >= *r.MaxOccurrences {
		return false
	}
	return !now.Before(r.NextGenerationDate)
}

// Exhausted reports whether the schedule has no further occurrences.
func (r *RecurringInvoice) Exhausted(now time.Time) bool {
	if r.MaxOccurrences != nil && r.CurrentOccurrences >= *r.MaxOccurrences {
		return true
	}
	if r.EndDate != nil && r.NextGenerationDate.After(*r.EndDate) {
		return true
	}
	return false
}

// Recurring schedule domain errors.
var (
	ErrRecurringNotFound        = &Error{Code: ENOTFOUND, Message: "Recurring schedule not found"}
	ErrRecurringAlreadyActive   = &Error{Code: ECONFLICT, Message: "Recurring schedule already active"}
	ErrRecurringAlreadyInactive = &Error{Code: ECONFLICT, Message: "Recurring schedule already inactive"}
	ErrRecurringExhausted       = &Error{Code: ECONFLICT, Message: "Recurring schedule has reached its end"}
	ErrInvalidFrequency         = &Error{Code: EINVALID, Message: "Unknown recurrence frequency"}
)

// RecurringService manages recurring invoice schedules and the generation
// pass the worker runs.
type RecurringService interface {
	CreateRecurring(ctx context.Context, params CreateRecurringParams) (*RecurringInvoice, error)
	GetRecurring(ctx context.Context, recurringID uuid.UUID) (*RecurringInvoice, error)
	ListRecurring(ctx context.Context, activeOnly bool, limit, offset int32) ([]RecurringInvoice, error)
	ActivateRecurring(ctx context.Context, recurringID, actorID uuid.UUID) (*RecurringInvoice, error)
	DeactivateRecurring(ctx context.Context, recurringID, actorID uuid.UUID) (*RecurringInvoice, error)

	// GenerateDueInvoices materializes invoices for every active schedule
	// whose next generation date is due, advancing schedules and
	// deactivating exhausted ones. Failures are isolated per schedule.
	GenerateDueInvoices(ctx context.Context, now time.Time) (*GenerationResult, error)
}

// CreateRecurringParams contains parameters for creating a schedule.
type CreateRecurringParams struct {
	TemplateID     uuid.UUID
	CustomerID     uuid.UUID
	PartnerID      *uuid.UUID
	BillTo         Contact
	Frequency      RecurrenceFrequency
	StartDate      time.Time
	EndDate        *time.Time
	MaxOccurrences *int
	AutoSend       bool
	CreatedBy      uuid.UUID
}

// GenerationResult summarizes one generation pass.
type GenerationResult struct {
	Generated int                `json:"generated"`
	Failed    int                `json:"failed"`
	Details   []GenerationDetail `json:"details"`
}

// GenerationDetail reports the outcome for one schedule in a pass.
type GenerationDetail struct {
	RecurringID uuid.UUID  `json:"recurring_id"`
	InvoiceID   *uuid.UUID `json:"invoice_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	Deactivated bool       `json:"deactivated,omitempty"`
}
