package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TemplateData holds the reusable invoice content a template stamps onto
// generated invoices.
type TemplateData struct {
	Items         []LineItem `json:"items"`
	Taxes         []TaxLine  `json:"taxes,omitempty"`
	DiscountCents int64      `json:"discount_cents,omitempty"`
	ShippingCents int64      `json:"shipping_cents,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	DueInDays     int        `json:"due_in_days,omitempty"`
}

// InvoiceTemplate is a named, reusable invoice definition used by the
// recurring scheduler and manual create-from-template.
type InvoiceTemplate struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Type         InvoiceType  `json:"type"`
	TemplateData TemplateData `json:"template_data"`
	DefaultTerms string       `json:"default_terms,omitempty"`
	DefaultNotes string       `json:"default_notes,omitempty"`
	IsActive     bool         `json:"is_active"`
	CreatedBy    uuid.UUID    `json:"created_by"`
	UpdatedBy    *uuid.UUID   `json:"updated_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Template domain errors.
var (
	ErrTemplateNotFound = &Error{Code: ENOTFOUND, Message: "Invoice template not found"}
	ErrTemplateInactive = &Error{Code: ECONFLICT, Message: "Invoice template is inactive"}
	ErrTemplateNoItems  = &Error{Code: EINVALID, Message: "Template must contain at least one line item"}
)

// TemplateService manages reusable invoice templates.
type TemplateService interface {
	CreateTemplate(ctx context.Context, params CreateTemplateParams) (*InvoiceTemplate, error)
	GetTemplate(ctx context.Context, templateID uuid.UUID) (*InvoiceTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool, limit, offset int32) ([]InvoiceTemplate, error)
	UpdateTemplate(ctx context.Context, templateID uuid.UUID, params UpdateTemplateParams) (*InvoiceTemplate, error)
	DeleteTemplate(ctx context.Context, templateID uuid.UUID) error
}

// CreateTemplateParams contains parameters for creating a template.
type CreateTemplateParams struct {
	Name         string
	Description  string
	Type         InvoiceType
	TemplateData TemplateData
	DefaultTerms string
	DefaultNotes string
	CreatedBy    uuid.UUID
}

// UpdateTemplateParams contains the updatable fields of a template.
// Nil pointers leave the field unchanged.
type UpdateTemplateParams struct {
	Name         *string
	Description  *string
	TemplateData *TemplateData
	DefaultTerms *string
	DefaultNotes *string
	IsActive     *bool
	UpdatedBy    uuid.UUID
}
