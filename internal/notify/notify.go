// Package notify is the boundary to the outbound notification system.
// Delivery itself (email templating, SMS gateways) lives outside this
// service; implementations here only hand the message off.
package notify

import (
	"context"

	"github.com/haldorsen/norn/internal/domain"
)

// Sender delivers invoice notifications to the billed party.
type Sender interface {
	// SendInvoiceIssued notifies the bill-to contact that an invoice was
	// issued to them.
	SendInvoiceIssued(ctx context.Context, inv *domain.Invoice) error

	// SendReminder delivers a payment reminder for an invoice.
	SendReminder(ctx context.Context, inv *domain.Invoice, reminder *domain.Reminder) error
}
