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

// ReminderService implements domain.ReminderService. Every delivery
// attempt is recorded, failures included, so the history shows what the
// billed party actually received.
type ReminderService struct {
	repo     repository.Repository
	settings domain.SettingsService
	notifier notify.Sender
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReminderService creates the reminder service.
func NewReminderService(repo repository.Repository, settings domain.SettingsService, notifier notify.Sender, logger zerolog.Logger) *ReminderService {
	return &ReminderService{
		repo:     repo,
		settings: settings,
		notifier: notifier,
		logger:   logger.With().Str("service", "reminder").Logger(),
		now:      time.Now,
	}
}

// remindable are the statuses a reminder may target.
func remindable(inv *domain.Invoice) bool {
	switch inv.Status {
	case domain.InvoiceStatusSent, domain.InvoiceStatusViewed,
		domain.InvoiceStatusApproved, domain.InvoiceStatusPartiallyPaid,
		domain.InvoiceStatusOverdue:
		return inv.BalanceCents > 0
	}
	return false
}

// SendReminder sends one reminder and records the attempt.
func (s *ReminderService) SendReminder(ctx context.Context, params domain.SendReminderParams) (*domain.Reminder, error) {
	const op = "reminder.send"

	reminderType := params.Type
	if reminderType == "" {
		reminderType = domain.ReminderTypeEmail
	}
	if !reminderType.IsValid() {
		return nil, domain.WrapError(op, domain.Invalid("Unknown reminder type: %s", params.Type))
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	if !settings.EnableReminders {
		return nil, domain.WrapError(op, domain.ErrRemindersDisabled)
	}

	inv, err := s.repo.GetInvoice(ctx, params.InvoiceID)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	if !remindable(inv) {
		return nil, domain.WrapError(op, domain.ErrInvoiceNotRemindable)
	}

	now := s.now()
	reminder := &domain.Reminder{
		ID:               uuid.New(),
		InvoiceID:        inv.ID,
		Type:             reminderType,
		Message:          params.Message,
		AdditionalEmails: params.AdditionalEmails,
		CreatedBy:        params.CreatedBy,
		CreatedAt:        now,
	}

	sendErr := s.notifier.SendReminder(ctx, inv, reminder)
	if sendErr != nil {
		reminder.ErrorMessage = sendErr.Error()
	} else {
		reminder.IsSent = true
		reminder.SentAt = &now
	}

	err = s.repo.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.CreateReminder(ctx, reminder); err != nil {
			return err
		}
		if !reminder.IsSent {
			return nil
		}
		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionReminderSent,
			Description: fmt.Sprintf("%s reminder sent for invoice %s", reminder.Type, inv.InvoiceNumber),
			PerformedBy: params.CreatedBy,
			PerformedAt: now,
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	if telemetry.Business != nil {
		if reminder.IsSent {
			telemetry.Business.RemindersSent.WithLabelValues(string(reminder.Type)).Inc()
		} else {
			telemetry.Business.RemindersFailed.WithLabelValues(string(reminder.Type)).Inc()
		}
	}

	if sendErr != nil {
		s.logger.Warn().Err(sendErr).
			Str("invoice_number", inv.InvoiceNumber).
			Msg("reminder delivery failed")
		return reminder, domain.WrapError(op, domain.Errorf(domain.EINTERNAL, "Reminder delivery failed"))
	}

	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("type", string(reminder.Type)).
		Msg("reminder sent")
	return reminder, nil
}

// SendOverdueReminders sends a reminder for every overdue invoice.
// Failures are isolated per invoice.
func (s *ReminderService) SendOverdueReminders(ctx context.Context, actorID uuid.UUID) (int, int, error) {
	const op = "reminder.send_overdue"

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return 0, 0, domain.WrapError(op, err)
	}
	if !settings.EnableReminders {
		return 0, 0, domain.WrapError(op, domain.ErrRemindersDisabled)
	}

	overdue, err := s.repo.ListOverdueInvoices(ctx)
	if err != nil {
		return 0, 0, domain.WrapError(op, err)
	}

	sent, failed := 0, 0
	for _, inv := range overdue {
		_, err := s.SendReminder(ctx, domain.SendReminderParams{
			InvoiceID: inv.ID,
			Type:      domain.ReminderTypeEmail,
			Message:   fmt.Sprintf("Invoice %s is %d days overdue", inv.InvoiceNumber, inv.DaysOverdue(s.now())),
			CreatedBy: actorID,
		})
		if err != nil {
			failed++
			continue
		}
		sent++
	}

	s.logger.Info().Int("sent", sent).Int("failed", failed).Msg("overdue reminder pass complete")
	return sent, failed, nil
}

// ListReminders returns an invoice's reminder history, newest first.
func (s *ReminderService) ListReminders(ctx context.Context, invoiceID uuid.UUID) ([]domain.Reminder, error) {
	const op = "reminder.list"

	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, domain.WrapError(op, err)
	}
	reminders, err := s.repo.ListReminders(ctx, invoiceID)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return reminders, nil
}
