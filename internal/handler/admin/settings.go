package admin

import (
	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(c echo.Context) error {
	settings, err := h.settings.GetSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, settings)
}

type updateSettingsRequest struct {
	DefaultCurrency     *string         `json:"default_currency" validate:"omitempty,len=3"`
	DefaultPaymentTerms *int            `json:"default_payment_terms" validate:"omitempty,gte=0"`
	AutoGenerateNumbers *bool           `json:"auto_generate_numbers"`
	NumberPrefix        *string         `json:"number_prefix"`
	NextNumber          *int64          `json:"next_number" validate:"omitempty,gte=1"`
	DefaultTerms        *string         `json:"default_terms"`
	DefaultNotes        *string         `json:"default_notes"`
	EnableReminders     *bool           `json:"enable_reminders"`
	ReminderSchedule    []int           `json:"reminder_schedule"`
	LateFeePercentage   *float64        `json:"late_fee_percentage" validate:"omitempty,gte=0,lte=100"`
	EnableLateFees      *bool           `json:"enable_late_fees"`
	LogoURL             *string         `json:"logo_url"`
	CompanyDetails      *domain.Contact `json:"company_details"`
}

// UpdateSettings handles PATCH /settings.
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req updateSettingsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	settings, err := h.settings.UpdateSettings(c.Request().Context(), domain.UpdateSettingsParams{
		DefaultCurrency:     req.DefaultCurrency,
		DefaultPaymentTerms: req.DefaultPaymentTerms,
		AutoGenerateNumbers: req.AutoGenerateNumbers,
		NumberPrefix:        req.NumberPrefix,
		NextNumber:          req.NextNumber,
		DefaultTerms:        req.DefaultTerms,
		DefaultNotes:        req.DefaultNotes,
		EnableReminders:     req.EnableReminders,
		ReminderSchedule:    req.ReminderSchedule,
		LateFeePercentage:   req.LateFeePercentage,
		EnableLateFees:      req.EnableLateFees,
		LogoURL:             req.LogoURL,
		CompanyDetails:      req.CompanyDetails,
		UpdatedBy:           actor(c),
	})
	if err != nil {
		return err
	}
	return ok(c, settings)
}
