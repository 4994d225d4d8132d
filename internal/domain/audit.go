package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit action codes. One entry is appended per state-changing operation,
// inside the same transaction as the change itself.
const (
	AuditActionCreated         = "CREATED"
	AuditActionUpdated         = "UPDATED"
	AuditActionDeleted         = "DELETED"
	AuditActionSubmitted       = "SUBMITTED"
	AuditActionSent            = "SENT"
	AuditActionViewed          = "VIEWED"
	AuditActionApproved        = "APPROVED"
	AuditActionRejected        = "REJECTED"
	AuditActionCancelled       = "CANCELLED"
	AuditActionVoided          = "VOIDED"
	AuditActionMarkedOverdue   = "MARKED_OVERDUE"
	AuditActionPaymentRecorded = "PAYMENT_RECORDED"
	AuditActionPaymentRefunded = "PAYMENT_REFUNDED"
	AuditActionMarkedPaid      = "MARKED_PAID"
	AuditActionReminderSent    = "REMINDER_SENT"
	AuditActionExported        = "EXPORTED"
)

// AuditEntry is one immutable line in an invoice's audit trail.
type AuditEntry struct {
	ID          uuid.UUID      `json:"id"`
	InvoiceID   uuid.UUID      `json:"invoice_id"`
	Action      string         `json:"action"`
	Description string         `json:"description,omitempty"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	PerformedBy uuid.UUID      `json:"performed_by"`
	PerformedAt time.Time      `json:"performed_at"`
}

// AuditService reads the immutable audit trail. Writes happen inside the
// mutating services' transactions, never through a standalone endpoint.
type AuditService interface {
	ListAuditTrail(ctx context.Context, invoiceID uuid.UUID, limit, offset int32) ([]AuditEntry, error)
}
