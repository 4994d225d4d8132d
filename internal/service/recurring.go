package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/notify"
	"github.com/haldorsen/norn/internal/repository"
	"github.com/haldorsen/norn/internal/telemetry"
)

// RecurringService implements domain.RecurringService. A generation pass
// handles every due schedule in its own transaction and error boundary,
// so one broken schedule never blocks the rest.
type RecurringService struct {
	repo        repository.Repository
	settings    domain.SettingsService
	notifier    notify.Sender
	logger      zerolog.Logger
	itemTimeout time.Duration
	now         func() time.Time
}

// NewRecurringService creates the recurring scheduler service.
func NewRecurringService(repo repository.Repository, settings domain.SettingsService, notifier notify.Sender, logger zerolog.Logger, itemTimeout time.Duration) *RecurringService {
	if itemTimeout <= 0 {
		itemTimeout = 30 * time.Second
	}
	return &RecurringService{
		repo:        repo,
		settings:    settings,
		notifier:    notifier,
		logger:      logger.With().Str("service", "recurring").Logger(),
		itemTimeout: itemTimeout,
		now:         time.Now,
	}
}

// CreateRecurring creates an active schedule anchored at its start date.
func (s *RecurringService) CreateRecurring(ctx context.Context, params domain.CreateRecurringParams) (*domain.RecurringInvoice, error) {
	const op = "recurring.create"

	if !params.Frequency.IsValid() {
		return nil, domain.WrapError(op, domain.ErrInvalidFrequency)
	}
	if params.StartDate.IsZero() {
		return nil, domain.WrapError(op, domain.Invalid("Start date is required"))
	}
	if params.EndDate != nil && params.EndDate.Before(params.StartDate) {
		return nil, domain.WrapError(op, domain.Invalid("End date cannot precede the start date"))
	}
	if params.MaxOccurrences != nil && *params.MaxOccurrences <= 0 {
		return nil, domain.WrapError(op, domain.Invalid("Max occurrences must be greater than zero"))
	}
	if params.BillTo.Name == "" || params.BillTo.Email == "" {
		return nil, domain.WrapError(op, domain.Invalid("Bill-to name and email are required"))
	}

	tmpl, err := s.repo.GetTemplate(ctx, params.TemplateID)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	if !tmpl.IsActive {
		return nil, domain.WrapError(op, domain.ErrTemplateInactive)
	}
	if len(tmpl.TemplateData.Items) == 0 {
		return nil, domain.WrapError(op, domain.ErrTemplateNoItems)
	}

	now := s.now()
	rec := &domain.RecurringInvoice{
		ID:                 uuid.New(),
		TemplateID:         params.TemplateID,
		CustomerID:         params.CustomerID,
		PartnerID:          params.PartnerID,
		BillTo:             params.BillTo,
		Frequency:          params.Frequency,
		StartDate:          params.StartDate,
		EndDate:            params.EndDate,
		MaxOccurrences:     params.MaxOccurrences,
		NextGenerationDate: params.StartDate,
		IsActive:           true,
		AutoSend:           params.AutoSend,
		CreatedBy:          params.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreateRecurring(ctx, rec); err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("recurring_id", rec.ID.String()).
		Str("frequency", string(rec.Frequency)).
		Time("next_generation", rec.NextGenerationDate).
		Msg("recurring schedule created")
	return rec, nil
}

// GetRecurring retrieves a schedule by ID.
func (s *RecurringService) GetRecurring(ctx context.Context, recurringID uuid.UUID) (*domain.RecurringInvoice, error) {
	rec, err := s.repo.GetRecurring(ctx, recurringID)
	if err != nil {
		return nil, domain.WrapError("recurring.get", err)
	}
	return rec, nil
}

// ListRecurring lists schedules, newest first.
func (s *RecurringService) ListRecurring(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.RecurringInvoice, error) {
	recs, err := s.repo.ListRecurring(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, domain.WrapError("recurring.list", err)
	}
	return recs, nil
}

// ActivateRecurring re-enables an inactive schedule. Exhausted schedules
// cannot be reactivated.
func (s *RecurringService) ActivateRecurring(ctx context.Context, recurringID, actorID uuid.UUID) (*domain.RecurringInvoice, error) {
	return s.setActive(ctx, "recurring.activate", recurringID, actorID, true)
}

// DeactivateRecurring pauses an active schedule.
func (s *RecurringService) DeactivateRecurring(ctx context.Context, recurringID, actorID uuid.UUID) (*domain.RecurringInvoice, error) {
	return s.setActive(ctx, "recurring.deactivate", recurringID, actorID, false)
}

func (s *RecurringService) setActive(ctx context.Context, op string, recurringID, actorID uuid.UUID, active bool) (*domain.RecurringInvoice, error) {
	var rec *domain.RecurringInvoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		rec, err = q.GetRecurringForUpdate(ctx, recurringID)
		if err != nil {
			return err
		}
		if rec.IsActive == active {
			if active {
				return domain.ErrRecurringAlreadyActive
			}
			return domain.ErrRecurringAlreadyInactive
		}
		if active && rec.Exhausted(s.now()) {
			return domain.ErrRecurringExhausted
		}
		rec.IsActive = active
		rec.UpdatedBy = &actorID
		return q.UpdateRecurring(ctx, rec)
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("recurring_id", rec.ID.String()).
		Bool("is_active", rec.IsActive).
		Msg("recurring schedule toggled")
	return rec, nil
}

// GenerateDueInvoices materializes an invoice for every schedule due at
// now. Each schedule runs in its own transaction with its own timeout.
func (s *RecurringService) GenerateDueInvoices(ctx context.Context, now time.Time) (*domain.GenerationResult, error) {
	const op = "recurring.generate"

	due, err := s.repo.ListDueRecurring(ctx, now)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	result := &domain.GenerationResult{}
	for _, rec := range due {
		itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
		detail := s.generateOne(itemCtx, rec.ID, settings, now)
		cancel()

		result.Details = append(result.Details, detail)
		if detail.Error == "" {
			result.Generated++
			if telemetry.Business != nil {
				telemetry.Business.RecurringGenerated.WithLabelValues(string(rec.Frequency)).Inc()
			}
		} else {
			result.Failed++
			if telemetry.Business != nil {
				telemetry.Business.RecurringFailed.WithLabelValues(string(rec.Frequency)).Inc()
			}
			s.logger.Warn().
				Str("recurring_id", rec.ID.String()).
				Str("error", detail.Error).
				Msg("recurring generation failed")
		}
	}

	s.logger.Info().
		Int("generated", result.Generated).
		Int("failed", result.Failed).
		Msg("generation pass complete")
	return result, nil
}

// generateOne materializes one invoice from one schedule: invoice row,
// audit trail, occurrence counter, and next generation date all commit
// together or not at all. Auto-sent invoices additionally get a SENT
// audit entry and an issue notification after commit.
func (s *RecurringService) generateOne(ctx context.Context, recurringID uuid.UUID, settings *domain.InvoiceSettings, now time.Time) domain.GenerationDetail {
	detail := domain.GenerationDetail{RecurringID: recurringID}

	var issued *domain.Invoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		rec, err := q.GetRecurringForUpdate(ctx, recurringID)
		if err != nil {
			return err
		}
		if !rec.ShouldGenerate(now) {
			return domain.ErrRecurringExhausted
		}

		tmpl, err := q.GetTemplate(ctx, rec.TemplateID)
		if err != nil {
			return err
		}
		if !tmpl.IsActive {
			return domain.ErrTemplateInactive
		}
		if len(tmpl.TemplateData.Items) == 0 {
			return domain.ErrTemplateNoItems
		}

		prefix, number, err := q.IncrementInvoiceNumber(ctx)
		if err != nil {
			return domain.ErrInvoiceNumberGeneration
		}

		currency := tmpl.TemplateData.Currency
		if currency == "" {
			currency = settings.DefaultCurrency
		}
		dueInDays := tmpl.TemplateData.DueInDays
		if dueInDays <= 0 {
			dueInDays = settings.DefaultPaymentTerms
		}

		issueDate := now.Truncate(24 * time.Hour)
		inv := &domain.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: fmt.Sprintf("%s-%04d", prefix, number),
			Type:          tmpl.Type,
			Status:        domain.InvoiceStatusDraft,
			PaymentStatus: domain.PaymentStatusPending,
			CustomerID:    &rec.CustomerID,
			PartnerID:     rec.PartnerID,
			BillTo:        rec.BillTo,
			Items:         cloneItems(tmpl.TemplateData.Items),
			IssueDate:     issueDate,
			DueDate:       issueDate.AddDate(0, 0, dueInDays),
			Currency:      currency,
			DiscountCents: tmpl.TemplateData.DiscountCents,
			ShippingCents: tmpl.TemplateData.ShippingCents,
			Taxes:         tmpl.TemplateData.Taxes,
			Notes:         tmpl.DefaultNotes,
			Terms:         tmpl.DefaultTerms,
			CreatedBy:     rec.CreatedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if rec.AutoSend {
			inv.Status = domain.InvoiceStatusSent
			inv.SentAt = &now
		}
		applyAmounts(inv)

		if err := q.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionCreated,
			Description: fmt.Sprintf("Invoice %s generated from recurring schedule %s", inv.InvoiceNumber, rec.ID),
			NewValues:   invoiceSnapshot(inv),
			PerformedBy: rec.CreatedBy,
			PerformedAt: now,
		}); err != nil {
			return err
		}
		if rec.AutoSend {
			if err := q.CreateAuditEntry(ctx, &domain.AuditEntry{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				Action:      domain.AuditActionSent,
				Description: fmt.Sprintf("Invoice %s auto-sent on generation", inv.InvoiceNumber),
				OldValues:   map[string]any{"status": domain.InvoiceStatusDraft},
				NewValues:   map[string]any{"status": inv.Status},
				PerformedBy: rec.CreatedBy,
				PerformedAt: now,
			}); err != nil {
				return err
			}
			issued = inv
		}

		rec.CurrentOccurrences++
		rec.NextGenerationDate = nthOccurrence(rec.StartDate, rec.Frequency, rec.CurrentOccurrences)
		if rec.Exhausted(now) {
			rec.IsActive = false
			detail.Deactivated = true
		}
		if err := q.UpdateRecurring(ctx, rec); err != nil {
			return err
		}

		detail.InvoiceID = &inv.ID
		return nil
	})
	if err != nil {
		detail.Error = err.Error()
		return detail
	}

	if issued != nil {
		if err := s.notifier.SendInvoiceIssued(ctx, issued); err != nil {
			s.logger.Warn().Err(err).
				Str("invoice_number", issued.InvoiceNumber).
				Msg("issue notification failed")
		}
	}
	return detail
}

// nthOccurrence returns occurrence n of a schedule anchored at start.
// Month-based cadences keep the anchor day and clamp to the target
// month's length, so a Jan 31 monthly schedule lands on Feb 29 or 28 and
// returns to the 31st in March.
func nthOccurrence(start time.Time, f domain.RecurrenceFrequency, n int) time.Time {
	switch f {
	case domain.FrequencyDaily:
		return start.AddDate(0, 0, n)
	case domain.FrequencyWeekly:
		return start.AddDate(0, 0, 7*n)
	case domain.FrequencyMonthly:
		return addMonthsClamped(start, n)
	case domain.FrequencyQuarterly:
		return addMonthsClamped(start, 3*n)
	case domain.FrequencyYearly:
		return addMonthsClamped(start, 12*n)
	}
	return start
}

// addMonthsClamped adds months without time.AddDate's day overflow
// normalization: Jan 31 plus one month is Feb 28 (or 29), never Mar 2.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	firstOfTarget := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, h, min, sec, t.Nanosecond(), t.Location())
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
