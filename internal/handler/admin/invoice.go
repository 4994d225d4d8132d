package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type createInvoiceRequest struct {
	InvoiceNumber string             `json:"invoice_number"`
	Type          domain.InvoiceType `json:"type"`
	CustomerID    *uuid.UUID         `json:"customer_id"`
	PartnerID     *uuid.UUID         `json:"partner_id"`
	BookingID     *uuid.UUID         `json:"booking_id"`
	BillTo        domain.Contact     `json:"bill_to"`
	ShipTo        *domain.Contact    `json:"ship_to"`
	Items         []domain.LineItem  `json:"items" validate:"required,min=1"`
	IssueDate     *time.Time         `json:"issue_date"`
	DueDate       *time.Time         `json:"due_date"`
	Currency      string             `json:"currency" validate:"omitempty,len=3"`
	DiscountCents int64              `json:"discount_cents" validate:"gte=0"`
	ShippingCents int64              `json:"shipping_cents" validate:"gte=0"`
	Taxes         []domain.TaxLine   `json:"taxes"`
	Notes         string             `json:"notes"`
	Terms         string             `json:"terms"`
	CustomFields  map[string]any     `json:"custom_fields"`
}

// CreateInvoice handles POST /invoices.
func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	inv, err := h.invoices.CreateInvoice(c.Request().Context(), domain.CreateInvoiceParams{
		InvoiceNumber: req.InvoiceNumber,
		Type:          req.Type,
		CustomerID:    req.CustomerID,
		PartnerID:     req.PartnerID,
		BookingID:     req.BookingID,
		BillTo:        req.BillTo,
		ShipTo:        req.ShipTo,
		Items:         req.Items,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Currency:      req.Currency,
		DiscountCents: req.DiscountCents,
		ShippingCents: req.ShippingCents,
		Taxes:         req.Taxes,
		Notes:         req.Notes,
		Terms:         req.Terms,
		CustomFields:  req.CustomFields,
		CreatedBy:     actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, inv)
}

// GetInvoice handles GET /invoices/:id.
func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.invoices.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, inv)
}

// GetInvoiceByNumber handles GET /invoices/number/:number.
func (h *Handler) GetInvoiceByNumber(c echo.Context) error {
	inv, err := h.invoices.GetInvoiceByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return err
	}
	return ok(c, inv)
}

// ListInvoices handles GET /invoices.
func (h *Handler) ListInvoices(c echo.Context) error {
	filter, err := parseInvoiceFilter(c)
	if err != nil {
		return err
	}
	invoices, total, err := h.invoices.ListInvoices(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ok(c, listResponse{Data: invoices, Total: total})
}

type updateInvoiceRequest struct {
	BillTo        *domain.Contact   `json:"bill_to"`
	ShipTo        *domain.Contact   `json:"ship_to"`
	Items         []domain.LineItem `json:"items"`
	IssueDate     *time.Time        `json:"issue_date"`
	DueDate       *time.Time        `json:"due_date"`
	DiscountCents *int64            `json:"discount_cents" validate:"omitempty,gte=0"`
	ShippingCents *int64            `json:"shipping_cents" validate:"omitempty,gte=0"`
	Taxes         []domain.TaxLine  `json:"taxes"`
	Notes         *string           `json:"notes"`
	Terms         *string           `json:"terms"`
	CustomFields  map[string]any    `json:"custom_fields"`
}

// UpdateInvoice handles PATCH /invoices/:id.
func (h *Handler) UpdateInvoice(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateInvoiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	inv, err := h.invoices.UpdateInvoice(c.Request().Context(), id, domain.UpdateInvoiceParams{
		BillTo:        req.BillTo,
		ShipTo:        req.ShipTo,
		Items:         req.Items,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		DiscountCents: req.DiscountCents,
		ShippingCents: req.ShippingCents,
		Taxes:         req.Taxes,
		Notes:         req.Notes,
		Terms:         req.Terms,
		CustomFields:  req.CustomFields,
		UpdatedBy:     actor(c),
	})
	if err != nil {
		return err
	}
	return ok(c, inv)
}

// DeleteInvoice handles DELETE /invoices/:id.
func (h *Handler) DeleteInvoice(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.invoices.DeleteInvoice(c.Request().Context(), id, actor(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// transitionFunc is the shape shared by reasonless lifecycle transitions.
type transitionFunc func(c echo.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error)

func (h *Handler) transition(c echo.Context, fn transitionFunc) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	inv, err := fn(c, id, actor(c))
	if err != nil {
		return err
	}
	return ok(c, inv)
}

// SendInvoice handles POST /invoices/:id/send.
func (h *Handler) SendInvoice(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id, actorID uuid.UUID) (*domain.Invoice, error) {
		return h.invoices.SendInvoice(c.Request().Context(), id, actorID)
	})
}

// SubmitInvoice handles POST /invoices/:id/submit.
func (h *Handler) SubmitInvoice(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id, actorID uuid.UUID) (*domain.Invoice, error) {
		return h.invoices.SubmitInvoice(c.Request().Context(), id, actorID)
	})
}

// ApproveInvoice handles POST /invoices/:id/approve.
func (h *Handler) ApproveInvoice(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id, actorID uuid.UUID) (*domain.Invoice, error) {
		return h.invoices.ApproveInvoice(c.Request().Context(), id, actorID)
	})
}

// MarkInvoiceViewed handles POST /invoices/:id/mark-viewed.
func (h *Handler) MarkInvoiceViewed(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id, actorID uuid.UUID) (*domain.Invoice, error) {
		return h.invoices.MarkInvoiceViewed(c.Request().Context(), id, actorID)
	})
}

// MarkInvoiceOverdue handles POST /invoices/:id/mark-overdue.
func (h *Handler) MarkInvoiceOverdue(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id, actorID uuid.UUID) (*domain.Invoice, error) {
		return h.invoices.MarkInvoiceOverdue(c.Request().Context(), id, actorID)
	})
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RejectInvoice handles POST /invoices/:id/reject.
func (h *Handler) RejectInvoice(c echo.Context) error {
	return h.reasonTransition(c, h.invoices.RejectInvoice)
}

// CancelInvoice handles POST /invoices/:id/cancel.
func (h *Handler) CancelInvoice(c echo.Context) error {
	return h.reasonTransition(c, h.invoices.CancelInvoice)
}

// VoidInvoice handles POST /invoices/:id/void.
func (h *Handler) VoidInvoice(c echo.Context) error {
	return h.reasonTransition(c, h.invoices.VoidInvoice)
}

func (h *Handler) reasonTransition(
	c echo.Context,
	fn func(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*domain.Invoice, error),
) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inv, err := fn(c.Request().Context(), id, actor(c), req.Reason)
	if err != nil {
		return err
	}
	return ok(c, inv)
}

func parseInvoiceFilter(c echo.Context) (domain.InvoiceFilter, error) {
	var filter domain.InvoiceFilter

	for _, raw := range splitParam(c.QueryParam("status")) {
		status := domain.InvoiceStatus(raw)
		if !status.IsValid() {
			return filter, domain.Invalid("Unknown status %q", raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitParam(c.QueryParam("type")) {
		typ := domain.InvoiceType(raw)
		if !typ.IsValid() {
			return filter, domain.Invalid("Unknown type %q", raw)
		}
		filter.Types = append(filter.Types, typ)
	}
	if raw := c.QueryParam("payment_status"); raw != "" {
		status := domain.PaymentStatus(raw)
		filter.PaymentStatus = &status
	}

	var err error
	if filter.CustomerID, err = queryUUID(c, "customer_id"); err != nil {
		return filter, err
	}
	if filter.PartnerID, err = queryUUID(c, "partner_id"); err != nil {
		return filter, err
	}
	if filter.BookingID, err = queryUUID(c, "booking_id"); err != nil {
		return filter, err
	}
	if filter.IssuedFrom, err = queryTime(c, "issued_from"); err != nil {
		return filter, err
	}
	if filter.IssuedTo, err = queryTime(c, "issued_to"); err != nil {
		return filter, err
	}
	if filter.MinTotalCents, err = queryInt64(c, "min_total_cents"); err != nil {
		return filter, err
	}
	if filter.MaxTotalCents, err = queryInt64(c, "max_total_cents"); err != nil {
		return filter, err
	}

	filter.Search = c.QueryParam("search")
	filter.SortBy = c.QueryParam("sort_by")
	filter.SortDesc = c.QueryParam("sort_desc") == "true"
	filter.Limit, filter.Offset = pagination(c)

	return filter, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.Invalid("Invalid %s: must be a UUID", name)
	}
	return &id, nil
}

func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse("2006-01-02", raw); err != nil {
			return nil, domain.Invalid("Invalid %s: use RFC 3339 or YYYY-MM-DD", name)
		}
	}
	return &t, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.Invalid("Invalid %s: must be an integer", name)
	}
	return &n, nil
}

func pagination(c echo.Context) (limit, offset int32) {
	limit = 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 && n <= 500 {
			limit = int32(n)
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
