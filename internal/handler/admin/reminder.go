package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type sendReminderRequest struct {
	Type             domain.ReminderType `json:"type"`
	Message          string              `json:"message"`
	AdditionalEmails []string            `json:"additional_emails" validate:"omitempty,dive,email"`
}

// SendReminder handles POST /invoices/:id/reminders.
func (h *Handler) SendReminder(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req sendReminderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	reminder, err := h.reminders.SendReminder(c.Request().Context(), domain.SendReminderParams{
		InvoiceID:        id,
		Type:             req.Type,
		Message:          req.Message,
		AdditionalEmails: req.AdditionalEmails,
		CreatedBy:        actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, reminder)
}

// ListReminders handles GET /invoices/:id/reminders.
func (h *Handler) ListReminders(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	reminders, err := h.reminders.ListReminders(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, reminders)
}

// SendOverdueReminders handles POST /reminders/overdue. The worker runs
// this pass on a schedule; the endpoint exists for manual triggering.
func (h *Handler) SendOverdueReminders(c echo.Context) error {
	sent, failed, err := h.reminders.SendOverdueReminders(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"sent": sent, "failed": failed})
}
