// Package events publishes lifecycle events after state changes commit.
// Subscribers (webhooks, search indexing, downstream billing) are
// external; nothing in this service depends on delivery.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event subjects, appended to the configured subject prefix.
const (
	SubjectInvoiceCreated   = "created"
	SubjectInvoiceSent      = "sent"
	SubjectInvoiceApproved  = "approved"
	SubjectInvoiceRejected  = "rejected"
	SubjectInvoiceCancelled = "cancelled"
	SubjectInvoiceVoided    = "voided"
	SubjectInvoicePaid      = "paid"
	SubjectInvoiceOverdue   = "overdue"
	SubjectPaymentRecorded  = "payment_recorded"
	SubjectPaymentRefunded  = "payment_refunded"
	SubjectSettingsUpdated  = "settings_updated"
)

// InvoiceEvent is the payload published for invoice lifecycle changes.
type InvoiceEvent struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	TotalCents    int64     `json:"total_cents"`
	BalanceCents  int64     `json:"balance_cents"`
	ActorID       uuid.UUID `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits events on a subject. Implementations must not block
// request handling on delivery.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}
