package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReminderType is the delivery channel for an invoice reminder.
type ReminderType string

const (
	ReminderTypeEmail    ReminderType = "email"
	ReminderTypeSMS      ReminderType = "sms"
	ReminderTypePush     ReminderType = "push"
	ReminderTypeWhatsApp ReminderType = "whatsapp"
)

// IsValid reports whether t is a known reminder type.
func (t ReminderType) IsValid() bool {
	switch t {
	case ReminderTypeEmail, ReminderTypeSMS, ReminderTypePush, ReminderTypeWhatsApp:
		return true
	}
	return false
}

// Reminder records one reminder delivery attempt for an invoice.
type Reminder struct {
	ID               uuid.UUID    `json:"id"`
	InvoiceID        uuid.UUID    `json:"invoice_id"`
	Type             ReminderType `json:"type"`
	Message          string       `json:"message,omitempty"`
	AdditionalEmails []string     `json:"additional_emails,omitempty"`
	ScheduledFor     *time.Time   `json:"scheduled_for,omitempty"`
	SentAt           *time.Time   `json:"sent_at,omitempty"`
	IsSent           bool         `json:"is_sent"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	CreatedBy        uuid.UUID    `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Reminder domain errors.
var (
	ErrRemindersDisabled    = &Error{Code: ECONFLICT, Message: "Reminders are disabled in invoice settings"}
	ErrInvoiceNotRemindable = &Error{Code: ECONFLICT, Message: "Reminders only apply to issued invoices with an outstanding balance"}
)

// ReminderService sends payment reminders for issued invoices.
type ReminderService interface {
	// SendReminder sends one reminder for an invoice and records it.
	SendReminder(ctx context.Context, params SendReminderParams) (*Reminder, error)

	// SendOverdueReminders sends reminders for all overdue invoices.
	// Failures are isolated per invoice. Returns sent and failed counts.
	SendOverdueReminders(ctx context.Context, actorID uuid.UUID) (sent, failed int, err error)

	// ListReminders returns the reminder history for an invoice.
	ListReminders(ctx context.Context, invoiceID uuid.UUID) ([]Reminder, error)
}

// SendReminderParams contains parameters for sending a reminder.
type SendReminderParams struct {
	InvoiceID        uuid.UUID
	Type             ReminderType // defaults to email
	Message          string
	AdditionalEmails []string
	CreatedBy        uuid.UUID
}
