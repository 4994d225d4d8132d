package admin

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type recordPaymentRequest struct {
	AmountCents int64                `json:"amount_cents" validate:"required,gt=0"`
	Method      domain.PaymentMethod `json:"method" validate:"required"`
	PaymentDate *time.Time           `json:"payment_date"`
	Reference   string               `json:"reference"`
	Notes       string               `json:"notes"`
	BankDetails map[string]any       `json:"bank_details"`
}

// RecordPayment handles POST /invoices/:id/payments.
func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req recordPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	payment, err := h.payments.RecordPayment(c.Request().Context(), domain.RecordPaymentParams{
		InvoiceID:   id,
		AmountCents: req.AmountCents,
		Method:      req.Method,
		PaymentDate: req.PaymentDate,
		Reference:   req.Reference,
		Notes:       req.Notes,
		BankDetails: req.BankDetails,
		RecordedBy:  actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, payment)
}

type markPaidRequest struct {
	Method    domain.PaymentMethod `json:"method"`
	Reference string               `json:"reference"`
	Notes     string               `json:"notes"`
}

// MarkInvoicePaid handles POST /invoices/:id/mark-paid.
func (h *Handler) MarkInvoicePaid(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req markPaidRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	inv, err := h.payments.MarkInvoicePaid(c.Request().Context(), domain.MarkPaidParams{
		InvoiceID:  id,
		Method:     req.Method,
		Reference:  req.Reference,
		Notes:      req.Notes,
		RecordedBy: actor(c),
	})
	if err != nil {
		return err
	}
	return ok(c, inv)
}

type refundPaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	Reason      string `json:"reason"`
}

// RefundPayment handles POST /payments/:id/refund. A zero amount refunds
// the payment in full.
func (h *Handler) RefundPayment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req refundPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	refund, err := h.payments.RefundPayment(c.Request().Context(), domain.RefundPaymentParams{
		PaymentID:   id,
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		RecordedBy:  actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, refund)
}

// ListInvoicePayments handles GET /invoices/:id/payments.
func (h *Handler) ListInvoicePayments(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	payments, err := h.payments.ListInvoicePayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, payments)
}

// ListPayments handles GET /payments.
func (h *Handler) ListPayments(c echo.Context) error {
	var filter domain.PaymentFilter

	var err error
	if filter.InvoiceID, err = queryUUID(c, "invoice_id"); err != nil {
		return err
	}
	if raw := c.QueryParam("method"); raw != "" {
		method := domain.PaymentMethod(raw)
		if !method.IsValid() {
			return domain.Invalid("Unknown payment method %q", raw)
		}
		filter.Method = &method
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := domain.PaymentStatus(raw)
		filter.Status = &status
	}

	if filter.From, err = queryTime(c, "from"); err != nil {
		return err
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return err
	}
	filter.Limit, filter.Offset = pagination(c)

	payments, total, err := h.payments.ListPayments(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ok(c, listResponse{Data: payments, Total: total})
}
