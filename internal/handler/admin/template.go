package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type createTemplateRequest struct {
	Name         string              `json:"name" validate:"required"`
	Description  string              `json:"description"`
	Type         domain.InvoiceType  `json:"type"`
	TemplateData domain.TemplateData `json:"template_data"`
	DefaultTerms string              `json:"default_terms"`
	DefaultNotes string              `json:"default_notes"`
}

// CreateTemplate handles POST /templates.
func (h *Handler) CreateTemplate(c echo.Context) error {
	var req createTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tmpl, err := h.templates.CreateTemplate(c.Request().Context(), domain.CreateTemplateParams{
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		TemplateData: req.TemplateData,
		DefaultTerms: req.DefaultTerms,
		DefaultNotes: req.DefaultNotes,
		CreatedBy:    actor(c),
	})
	if err != nil {
		return err
	}
	return created(c, tmpl)
}

// GetTemplate handles GET /templates/:id.
func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	tmpl, err := h.templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, tmpl)
}

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	limit, offset := pagination(c)

	templates, err := h.templates.ListTemplates(c.Request().Context(), activeOnly, limit, offset)
	if err != nil {
		return err
	}
	return ok(c, templates)
}

type updateTemplateRequest struct {
	Name         *string              `json:"name"`
	Description  *string              `json:"description"`
	TemplateData *domain.TemplateData `json:"template_data"`
	DefaultTerms *string              `json:"default_terms"`
	DefaultNotes *string              `json:"default_notes"`
	IsActive     *bool                `json:"is_active"`
}

// UpdateTemplate handles PATCH /templates/:id.
func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tmpl, err := h.templates.UpdateTemplate(c.Request().Context(), id, domain.UpdateTemplateParams{
		Name:         req.Name,
		Description:  req.Description,
		TemplateData: req.TemplateData,
		DefaultTerms: req.DefaultTerms,
		DefaultNotes: req.DefaultNotes,
		IsActive:     req.IsActive,
		UpdatedBy:    actor(c),
	})
	if err != nil {
		return err
	}
	return ok(c, tmpl)
}

// DeleteTemplate handles DELETE /templates/:id.
func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.templates.DeleteTemplate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
