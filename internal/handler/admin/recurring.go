package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type createRecurringRequest struct {
	TemplateID     uuid.UUID                  `json:"template_id" validate:"required"`
	CustomerID     uuid.UUID                  `json:"customer_id" validate:"required"`
	PartnerID      *uuid.UUID                 `json:"partner_id"`
	BillTo         domain.Contact             `json:"bill_to"`
	Frequency      domain.RecurrenceFrequency `json:"frequency" validate:"required"`
	StartDate      time.Time                  `json:"start_date" validate:"required"`
	EndDate        *time.Time                 `json:"end_date"`
	MaxOccurrences *int                       `json:"max_occurrences" validate:"omitempty,gt=0"`
	AutoSend       bool                       `json:"auto_send"`
}

// CreateRecurring handles POST /recurring.
func (h *Handler) CreateRecurring(c echo.Context) error {
	var req createRecurringRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	rec, err := h.recurring.CreateRecurring(c.Request().Context(), domain.CreateRecurringParams{
		TemplateID:     req.TemplateID,
		CustomerID:     req.CustomerID,
		PartnerID:      req.PartnerID,
		BillTo:         req.BillTo,
		Frequency:      req.Frequency,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxOccurrences: req.MaxOccurrences,
		AutoSend:       req.AutoSend,
		CreatedBy:      actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, rec)
}

// GetRecurring handles GET /recurring/:id.
func (h *Handler) GetRecurring(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.recurring.GetRecurring(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, rec)
}

// ListRecurring handles GET /recurring.
func (h *Handler) ListRecurring(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	limit, offset := pagination(c)

	schedules, err := h.recurring.ListRecurring(c.Request().Context(), activeOnly, limit, offset)
	if err != nil {
		return err
	}
	return ok(c, schedules)
}

// ActivateRecurring handles POST /recurring/:id/activate.
func (h *Handler) ActivateRecurring(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.recurring.ActivateRecurring(c.Request().Context(), id, actor(c))
	if err != nil {
		return err
	}
	return ok(c, rec)
}

// DeactivateRecurring handles POST /recurring/:id/deactivate.
func (h *Handler) DeactivateRecurring(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.recurring.DeactivateRecurring(c.Request().Context(), id, actor(c))
	if err != nil {
		return err
	}
	return ok(c, rec)
}

// GenerateRecurring handles POST /recurring/generate. The worker runs
// this pass on a schedule; the endpoint exists for manual triggering.
func (h *Handler) GenerateRecurring(c echo.Context) error {
	result, err := h.recurring.GenerateDueInvoices(c.Request().Context(), time.Now())
	if err != nil {
		return err
	}
	return ok(c, result)
}
