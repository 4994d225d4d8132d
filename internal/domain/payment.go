package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod identifies how a payment was collected.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodWallet       PaymentMethod = "wallet"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer,
		PaymentMethodUPI, PaymentMethodWallet, PaymentMethodCheque,
		PaymentMethodOnline, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is a single collection (or refund) event against an invoice.
// Refunds are separate records with negative AmountCents superseding the
// refunded payment, so the ledger stays append-only.
type Payment struct {
	ID          uuid.UUID      `json:"id"`
	InvoiceID   uuid.UUID      `json:"invoice_id"`
	AmountCents int64          `json:"amount_cents"`
	Method      PaymentMethod  `json:"method"`
	Status      PaymentStatus  `json:"status"`
	PaymentDate time.Time      `json:"payment_date"`
	Reference   string         `json:"reference,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	BankDetails map[string]any `json:"bank_details,omitempty"`
	RecordedBy  uuid.UUID      `json:"recorded_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Payment domain errors.
var (
	ErrPaymentNotFound      = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrPaymentNotCompleted  = &Error{Code: ECONFLICT, Message: "Only completed payments can be refunded"}
	ErrPaymentNotPositive   = &Error{Code: EINVALID, Message: "Payment amount must be greater than zero"}
	ErrRefundExceedsPayment = &Error{Code: EINVALID, Message: "Refund amount exceeds the original payment"}
	ErrInvoiceNotPayable    = &Error{Code: ECONFLICT, Message: "Cancelled, voided, or draft invoices cannot accept payments"}
)

// PaymentService manages the payment ledger for invoices.
type PaymentService interface {
	// RecordPayment appends a payment to an invoice's ledger and updates
	// the invoice's paid amount, balance, payment status, and lifecycle
	// status atomically. A payment settling the full balance marks the
	// invoice paid.
	RecordPayment(ctx context.Context, params RecordPaymentParams) (*Payment, error)

	// MarkInvoicePaid records the outstanding balance as a payment,
	// settling the invoice in one step.
	MarkInvoicePaid(ctx context.Context, params MarkPaidParams) (*Invoice, error)

	// RefundPayment reverses a completed payment, restoring the invoice
	// balance. A full refund of all collected amounts marks the invoice
	// refunded.
	RefundPayment(ctx context.Context, params RefundPaymentParams) (*Payment, error)

	// ListInvoicePayments returns the ledger for one invoice, oldest first.
	ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)

	// ListPayments returns payments across invoices matching the filter.
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)
}

// RecordPaymentParams contains parameters for recording a payment.
type RecordPaymentParams struct {
	InvoiceID   uuid.UUID
	AmountCents int64
	Method      PaymentMethod
	PaymentDate *time.Time // defaults to now
	Reference   string
	Notes       string
	BankDetails map[string]any
	RecordedBy  uuid.UUID
}

// MarkPaidParams contains parameters for settling an invoice in full.
type MarkPaidParams struct {
	InvoiceID   uuid.UUID
	Method      PaymentMethod // defaults to "other"
	Reference   string
	Notes       string
	RecordedBy  uuid.UUID
}

// RefundPaymentParams contains parameters for refunding a payment.
// AmountCents of zero refunds the full payment.
type RefundPaymentParams struct {
	PaymentID   uuid.UUID
	AmountCents int64
	Reason      string
	RecordedBy  uuid.UUID
}

// PaymentFilter narrows and pages payment listings.
type PaymentFilter struct {
	InvoiceID *uuid.UUID
	Method    *PaymentMethod
	Status    *PaymentStatus
	From      *time.Time
	To        *time.Time
	Limit     int32
	Offset    int32
}
