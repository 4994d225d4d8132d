package admin

import (
	"github.com/labstack/echo/v4"
)

// ListAuditTrail handles GET /invoices/:id/audit.
func (h *Handler) ListAuditTrail(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	entries, err := h.audit.ListAuditTrail(c.Request().Context(), id, limit, offset)
	if err != nil {
		return err
	}
	return ok(c, entries)
}
