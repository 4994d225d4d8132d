package admin

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type bulkRequest struct {
	Operation  domain.BulkOperation `json:"operation" validate:"required"`
	InvoiceIDs []uuid.UUID          `json:"invoice_ids" validate:"required,min=1"`
	Reason     string               `json:"reason"`
	Format     domain.ExportFormat  `json:"format"`
	Message    string               `json:"message"`
}

// ExecuteBulk handles POST /invoices/bulk.
func (h *Handler) ExecuteBulk(c echo.Context) error {
	var req bulkRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.bulk.Execute(c.Request().Context(), domain.BulkRequest{
		Operation:  req.Operation,
		InvoiceIDs: req.InvoiceIDs,
		Reason:     req.Reason,
		Format:     req.Format,
		Message:    req.Message,
		ActorID:    actor(c),
	})
	if err != nil {
		return err
	}
	return ok(c, result)
}
