package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusViewed        InvoiceStatus = "viewed"
	InvoiceStatusApproved      InvoiceStatus = "approved"
	InvoiceStatusRejected      InvoiceStatus = "rejected"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
	InvoiceStatusVoided        InvoiceStatus = "voided"
	InvoiceStatusRefunded      InvoiceStatus = "refunded"
)

// IsValid reports whether s is a known invoice status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusSent,
		InvoiceStatusViewed, InvoiceStatusApproved, InvoiceStatusRejected,
		InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue,
		InvoiceStatusCancelled, InvoiceStatusVoided, InvoiceStatusRefunded:
		return true
	}
	return false
}

// InvoiceType categorizes what an invoice bills for.
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "standard"
	InvoiceTypeProforma   InvoiceType = "proforma"
	InvoiceTypeRecurring  InvoiceType = "recurring"
	InvoiceTypeCreditNote InvoiceType = "credit_note"
	InvoiceTypeDebitNote  InvoiceType = "debit_note"
	InvoiceTypeBooking    InvoiceType = "booking"
	InvoiceTypeCommission InvoiceType = "commission"
	InvoiceTypeRefund     InvoiceType = "refund"
	InvoiceTypeAdjustment InvoiceType = "adjustment"
)

// IsValid reports whether t is a known invoice type.
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeStandard, InvoiceTypeProforma, InvoiceTypeRecurring,
		InvoiceTypeCreditNote, InvoiceTypeDebitNote, InvoiceTypeBooking,
		InvoiceTypeCommission, InvoiceTypeRefund, InvoiceTypeAdjustment:
		return true
	}
	return false
}

// PaymentStatus tracks collection progress independently of the
// lifecycle status. An invoice can be overdue while partially collected.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// TaxType identifies a tax jurisdiction/category on a tax line.
type TaxType string

const (
	TaxTypeGST  TaxType = "gst"
	TaxTypeCGST TaxType = "cgst"
	TaxTypeSGST TaxType = "sgst"
	TaxTypeIGST TaxType = "igst"
	TaxTypeCess TaxType = "cess"
	TaxTypeTCS  TaxType = "tcs"
	TaxTypeTDS  TaxType = "tds"
	TaxTypeVAT  TaxType = "vat"
)

// Address is a postal address snapshot embedded in invoices.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Contact is a billing or shipping party snapshot. Stored on the invoice
// so later edits to the customer record never change issued documents.
type Contact struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// TaxLine is a single tax applied to a line item or the whole invoice.
// AmountCents is the absolute tax in minor units, not derived from Rate.
type TaxLine struct {
	Type        TaxType `json:"type"`
	Rate        float64 `json:"rate"`
	AmountCents int64   `json:"amount_cents"`
	Description string  `json:"description,omitempty"`
}

// LineItem is a billed line. TotalCents is derived as
// round(Quantity * UnitPriceCents) and persisted with the invoice.
type LineItem struct {
	Description        string    `json:"description"`
	Quantity           float64   `json:"quantity"`
	UnitPriceCents     int64     `json:"unit_price_cents"`
	TotalCents         int64     `json:"total_cents"`
	Taxes              []TaxLine `json:"taxes,omitempty"`
	DiscountPercentage float64   `json:"discount_percentage,omitempty"`
	DiscountCents      int64     `json:"discount_cents,omitempty"`
}

// Invoice is the central billing record. All monetary fields are minor
// units (cents) in Currency.
type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	Type          InvoiceType   `json:"type"`
	Status        InvoiceStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	PartnerID  *uuid.UUID `json:"partner_id,omitempty"`
	BookingID  *uuid.UUID `json:"booking_id,omitempty"`

	BillTo Contact  `json:"bill_to"`
	ShipTo *Contact `json:"ship_to,omitempty"`

	Items []LineItem `json:"items"`

	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`
	Currency  string    `json:"currency"`

	SubtotalCents  int64 `json:"subtotal_cents"`
	DiscountCents  int64 `json:"discount_cents"`
	TaxCents       int64 `json:"tax_cents"`
	ShippingCents  int64 `json:"shipping_cents"`
	TotalCents     int64 `json:"total_cents"`
	PaidCents      int64 `json:"paid_cents"`
	BalanceCents   int64 `json:"balance_cents"`

	Notes        string            `json:"notes,omitempty"`
	Terms        string            `json:"terms,omitempty"`
	CustomFields map[string]any    `json:"custom_fields,omitempty"`
	Taxes        []TaxLine         `json:"taxes,omitempty"`

	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	PdfURL             string  `json:"pdf_url,omitempty"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`

	RejectionReason    string `json:"rejection_reason,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	VoidReason         string `json:"void_reason,omitempty"`

	CreatedBy   uuid.UUID  `json:"created_by"`
	UpdatedBy   *uuid.UUID `json:"updated_by,omitempty"`
	ApprovedBy  *uuid.UUID `json:"approved_by,omitempty"`
	RejectedBy  *uuid.UUID `json:"rejected_by,omitempty"`
	CancelledBy *uuid.UUID `json:"cancelled_by,omitempty"`
	VoidedBy    *uuid.UUID `json:"voided_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanBeEdited reports whether line-level fields may still change.
func (i *Invoice) CanBeEdited() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusPending
}

// CanBeCancelled reports whether the invoice may still be cancelled.
func (i *Invoice) CanBeCancelled() bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusVoided:
		return false
	}
	return true
}

// IsPaid reports whether the invoice is fully collected.
func (i *Invoice) IsPaid() bool {
	return i.PaymentStatus == PaymentStatusCompleted
}

// IsOverdue reports whether the due date has passed with balance outstanding.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return now.After(i.DueDate) && i.PaymentStatus != PaymentStatusCompleted
}

// DaysOverdue returns full days past the due date, zero when not overdue.
func (i *Invoice) DaysOverdue(now time.Time) int {
	if !i.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(i.DueDate).Hours() / 24)
}

// Invoice domain errors.
var (
	ErrInvoiceNotFound         = &Error{Code: ENOTFOUND, Message: "Invoice not found"}
	ErrInvoiceNotDraft         = &Error{Code: ECONFLICT, Message: "Invoice must be in draft status"}
	ErrInvoiceNotEditable      = &Error{Code: ECONFLICT, Message: "Only draft or pending invoices can be updated"}
	ErrInvoiceNotPending       = &Error{Code: ECONFLICT, Message: "Invoice must be in pending status"}
	ErrInvoiceNotSent          = &Error{Code: ECONFLICT, Message: "Invoice must be in sent status"}
	ErrInvoiceNotCancellable   = &Error{Code: ECONFLICT, Message: "Paid, cancelled, or voided invoices cannot be cancelled"}
	ErrInvoiceAlreadyVoided    = &Error{Code: ECONFLICT, Message: "Invoice already voided"}
	ErrInvoiceNotOverdue       = &Error{Code: ECONFLICT, Message: "Invoice is not past due with an outstanding balance"}
	ErrInvoiceAlreadyPaid      = &Error{Code: ECONFLICT, Message: "Invoice already paid in full"}
	ErrPaymentExceedsBalance   = &Error{Code: EINVALID, Message: "Payment amount exceeds invoice balance"}
	ErrReasonRequired          = &Error{Code: EINVALID, Message: "A reason is required for this action"}
	ErrDuplicateInvoiceNumber  = &Error{Code: ECONFLICT, Message: "Invoice number already exists"}
	ErrInvoiceNumberGeneration = &Error{Code: EINTERNAL, Message: "Failed to generate invoice number"}
)

// InvoiceService manages the invoice lifecycle: creation, guarded state
// transitions, and queries.
type InvoiceService interface {
	// CreateInvoice creates a draft invoice, assigning the next invoice
	// number unless one is supplied, and computing all derived amounts.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// GetInvoice retrieves an invoice by ID.
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)

	// GetInvoiceByNumber retrieves an invoice by its human-readable number.
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// ListInvoices lists invoices matching the filter and the total count
	// of matches ignoring pagination.
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// UpdateInvoice updates a draft or pending invoice and recomputes
	// derived amounts.
	UpdateInvoice(ctx context.Context, invoiceID uuid.UUID, params UpdateInvoiceParams) (*Invoice, error)

	// DeleteInvoice deletes a draft invoice.
	DeleteInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) error

	// SendInvoice issues a draft invoice: stamps sent_at, notifies the
	// billed party, and optionally registers a payment intent with the
	// payment gateway.
	SendInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error)

	// SubmitInvoice moves a draft invoice into pending for approval.
	SubmitInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error)

	// ApproveInvoice approves a pending invoice.
	ApproveInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error)

	// RejectInvoice rejects a pending invoice with a reason.
	RejectInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*Invoice, error)

	// CancelInvoice cancels an invoice that is not paid, cancelled, or voided.
	CancelInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*Invoice, error)

	// VoidInvoice voids an invoice that is not already voided.
	VoidInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*Invoice, error)

	// MarkInvoiceViewed transitions a sent invoice to viewed.
	MarkInvoiceViewed(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error)

	// MarkInvoiceOverdue transitions an invoice past its due date with an
	// outstanding balance to overdue.
	MarkInvoiceOverdue(ctx context.Context, invoiceID, actorID uuid.UUID) (*Invoice, error)

	// MarkInvoicesOverdue sweeps all eligible invoices past due. Called by
	// the background worker. Returns the number of invoices transitioned.
	MarkInvoicesOverdue(ctx context.Context, actorID uuid.UUID) (int, error)
}

// CreateInvoiceParams contains parameters for creating an invoice.
type CreateInvoiceParams struct {
	InvoiceNumber string // optional, auto-generated when empty
	Type          InvoiceType
	CustomerID    *uuid.UUID
	PartnerID     *uuid.UUID
	BookingID     *uuid.UUID
	BillTo        Contact
	ShipTo        *Contact
	Items         []LineItem
	IssueDate     *time.Time // defaults to today
	DueDate       *time.Time // defaults to issue date + configured payment terms
	Currency      string     // defaults to the configured currency
	DiscountCents int64
	ShippingCents int64
	Taxes         []TaxLine
	Notes         string
	Terms         string
	CustomFields  map[string]any
	CreatedBy     uuid.UUID
}

// UpdateInvoiceParams contains the updatable fields of a draft or pending
// invoice. Nil pointers leave the field unchanged.
type UpdateInvoiceParams struct {
	BillTo        *Contact
	ShipTo        *Contact
	Items         []LineItem
	IssueDate     *time.Time
	DueDate       *time.Time
	DiscountCents *int64
	ShippingCents *int64
	Taxes         []TaxLine
	Notes         *string
	Terms         *string
	CustomFields  map[string]any
	UpdatedBy     uuid.UUID
}

// InvoiceFilter narrows and pages invoice listings.
type InvoiceFilter struct {
	IDs           []uuid.UUID
	Statuses      []InvoiceStatus
	Types         []InvoiceType
	PaymentStatus *PaymentStatus
	CustomerID    *uuid.UUID
	PartnerID     *uuid.UUID
	BookingID     *uuid.UUID
	IssuedFrom    *time.Time
	IssuedTo      *time.Time
	MinTotalCents *int64
	MaxTotalCents *int64
	Search        string // matches invoice number or bill-to name
	SortBy        string // created_at, issue_date, due_date, total_cents, invoice_number, status
	SortDesc      bool
	Limit         int32
	Offset        int32
}
