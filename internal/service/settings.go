package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/events"
	"github.com/haldorsen/norn/internal/repository"
)

// SettingsService implements domain.SettingsService over the singleton
// settings row.
type SettingsService struct {
	repo   repository.Repository
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewSettingsService creates the settings service.
func NewSettingsService(repo repository.Repository, publisher events.Publisher, logger zerolog.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		events: publisher,
		logger: logger.With().Str("service", "settings").Logger(),
		now:    time.Now,
	}
}

func defaultSettings() *domain.InvoiceSettings {
	return &domain.InvoiceSettings{
		ID:                  uuid.New(),
		DefaultCurrency:     "USD",
		DefaultPaymentTerms: 30,
		AutoGenerateNumbers: true,
		NumberPrefix:        "INV",
		NextNumber:          1,
		EnableReminders:     true,
		ReminderSchedule:    []int{7, 3, 1},
	}
}

// GetSettings returns the settings row, seeding defaults on first use.
// Concurrent first calls race on the insert; the unique singleton
// constraint makes the loser re-read the winner's row.
func (s *SettingsService) GetSettings(ctx context.Context) (*domain.InvoiceSettings, error) {
	const op = "settings.get"

	settings, err := s.repo.GetSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, domain.WrapError(op, err)
	}

	if err := s.repo.CreateSettings(ctx, defaultSettings()); err != nil {
		return nil, domain.WrapError(op, err)
	}
	settings, err = s.repo.GetSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return settings, nil
}

// UpdateSettings applies partial updates atomically.
func (s *SettingsService) UpdateSettings(ctx context.Context, params domain.UpdateSettingsParams) (*domain.InvoiceSettings, error) {
	const op = "settings.update"

	if params.DefaultPaymentTerms != nil && *params.DefaultPaymentTerms < 0 {
		return nil, domain.WrapError(op, domain.Invalid("Payment terms cannot be negative"))
	}
	if params.NextNumber != nil && *params.NextNumber < 1 {
		return nil, domain.WrapError(op, domain.Invalid("Next number must be at least 1"))
	}
	if params.NumberPrefix != nil && *params.NumberPrefix == "" {
		return nil, domain.WrapError(op, domain.Invalid("Number prefix cannot be empty"))
	}
	if params.LateFeePercentage != nil && (*params.LateFeePercentage < 0 || *params.LateFeePercentage > 100) {
		return nil, domain.WrapError(op, domain.Invalid("Late fee percentage must be between 0 and 100"))
	}
	for _, days := range params.ReminderSchedule {
		if days < 0 {
			return nil, domain.WrapError(op, domain.Invalid("Reminder schedule days cannot be negative"))
		}
	}

	if _, err := s.GetSettings(ctx); err != nil {
		return nil, domain.WrapError(op, err)
	}

	var updated *domain.InvoiceSettings
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		settings, err := q.GetSettings(ctx)
		if err != nil {
			return err
		}

		if params.DefaultCurrency != nil {
			settings.DefaultCurrency = *params.DefaultCurrency
		}
		if params.DefaultPaymentTerms != nil {
			settings.DefaultPaymentTerms = *params.DefaultPaymentTerms
		}
		if params.AutoGenerateNumbers != nil {
			settings.AutoGenerateNumbers = *params.AutoGenerateNumbers
		}
		if params.NumberPrefix != nil {
			settings.NumberPrefix = *params.NumberPrefix
		}
		if params.NextNumber != nil {
			settings.NextNumber = *params.NextNumber
		}
		if params.DefaultTerms != nil {
			settings.DefaultTerms = *params.DefaultTerms
		}
		if params.DefaultNotes != nil {
			settings.DefaultNotes = *params.DefaultNotes
		}
		if params.EnableReminders != nil {
			settings.EnableReminders = *params.EnableReminders
		}
		if params.ReminderSchedule != nil {
			settings.ReminderSchedule = params.ReminderSchedule
		}
		if params.LateFeePercentage != nil {
			settings.LateFeePercentage = *params.LateFeePercentage
		}
		if params.EnableLateFees != nil {
			settings.EnableLateFees = *params.EnableLateFees
		}
		if params.LogoURL != nil {
			settings.LogoURL = *params.LogoURL
		}
		if params.CompanyDetails != nil {
			settings.CompanyDetails = params.CompanyDetails
		}
		settings.UpdatedBy = params.UpdatedBy

		if err := q.UpdateSettings(ctx, settings); err != nil {
			return err
		}
		updated = settings
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().Str("updated_by", params.UpdatedBy.String()).Msg("settings updated")

	if s.events != nil {
		err := s.events.Publish(ctx, events.SubjectSettingsUpdated, events.InvoiceEvent{
			ActorID:    params.UpdatedBy,
			OccurredAt: s.now(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("event publish failed")
		}
	}
	return updated, nil
}

// NextInvoiceNumber allocates the next number atomically. The increment
// is a single UPDATE, so concurrent callers never collide.
func (s *SettingsService) NextInvoiceNumber(ctx context.Context) (string, error) {
	const op = "settings.next_number"

	if _, err := s.GetSettings(ctx); err != nil {
		return "", domain.WrapError(op, err)
	}

	prefix, number, err := s.repo.IncrementInvoiceNumber(ctx)
	if err != nil {
		return "", domain.WrapError(op, domain.ErrInvoiceNumberGeneration)
	}
	return fmt.Sprintf("%s-%04d", prefix, number), nil
}
