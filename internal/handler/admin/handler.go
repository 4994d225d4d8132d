// Package admin exposes the invoice administration JSON API. Handlers
// bind and validate request bodies, resolve the acting user from the
// request, and delegate all business rules to the services.
package admin

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/middleware"
)

// Handler carries the service dependencies for all admin endpoints.
type Handler struct {
	invoices  domain.InvoiceService
	payments  domain.PaymentService
	templates domain.TemplateService
	recurring domain.RecurringService
	reminders domain.ReminderService
	bulk      domain.BulkService
	exports   domain.ExportService
	settings  domain.SettingsService
	audit     domain.AuditService
	analytics domain.AnalyticsService
	logger    zerolog.Logger
}

// Services groups the handler's dependencies so wiring stays readable.
type Services struct {
	Invoices  domain.InvoiceService
	Payments  domain.PaymentService
	Templates domain.TemplateService
	Recurring domain.RecurringService
	Reminders domain.ReminderService
	Bulk      domain.BulkService
	Exports   domain.ExportService
	Settings  domain.SettingsService
	Audit     domain.AuditService
	Analytics domain.AnalyticsService
}

// NewHandler creates the admin API handler.
func NewHandler(svc Services, logger zerolog.Logger) *Handler {
	return &Handler{
		invoices:  svc.Invoices,
		payments:  svc.Payments,
		templates: svc.Templates,
		recurring: svc.Recurring,
		reminders: svc.Reminders,
		bulk:      svc.Bulk,
		exports:   svc.Exports,
		settings:  svc.Settings,
		audit:     svc.Audit,
		analytics: svc.Analytics,
		logger:    logger.With().Str("component", "admin_api").Logger(),
	}
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request body validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return domain.Invalid("%s", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "Field '" + fe.Field() + "' failed validation rule '" + fe.Tag() + "'"
	}
	return err.Error()
}

// bind decodes and validates a JSON request body.
func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return domain.Invalid("Invalid request body")
	}
	if err := c.Validate(dest); err != nil {
		return err
	}
	return nil
}

// pathUUID parses a UUID path parameter.
func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("Invalid %s: must be a UUID", name)
	}
	return id, nil
}

// actor returns the acting user established by the middleware.
func actor(c echo.Context) uuid.UUID {
	return middleware.ActorFrom(c)
}

// listResponse is the envelope for paginated collections.
type listResponse struct {
	Data  any   `json:"data"`
	Total int64 `json:"total"`
}

func ok(c echo.Context, body any) error {
	return c.JSON(http.StatusOK, body)
}

func created(c echo.Context, body any) error {
	return c.JSON(http.StatusCreated, body)
}
