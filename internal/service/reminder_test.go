package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/events"
)

func reminderFixture(t *testing.T) (*ReminderService, *InvoiceService, *fakeRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	invSvc, _ := newInvoiceService(repo)
	settings := NewSettingsService(repo, events.NewNoopPublisher(), testLogger())
	notifier := &fakeNotifier{}
	svc := NewReminderService(repo, settings, notifier, testLogger())
	return svc, invSvc, repo, notifier
}

func TestSendReminder(t *testing.T) {
	svc, invSvc, repo, notifier := reminderFixture(t)
	inv := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)
	actor := uuid.New()

	reminder, err := svc.SendReminder(context.Background(), domain.SendReminderParams{
		InvoiceID: inv.ID,
		Message:   "payment due soon",
		CreatedBy: actor,
	})
	require.NoError(t, err)
	assert.True(t, reminder.IsSent)
	assert.Equal(t, domain.ReminderTypeEmail, reminder.Type)
	require.NotNil(t, reminder.SentAt)
	assert.Equal(t, 1, notifier.reminders)
	assert.Contains(t, repo.auditActions(inv.ID), domain.AuditActionReminderSent)

	history, err := svc.ListReminders(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestSendReminderRecordsDeliveryFailure(t *testing.T) {
	svc, invSvc, repo, notifier := reminderFixture(t)
	inv := seedInvoice(t, invSvc, repo, domain.InvoiceStatusOverdue)
	notifier.fail = errors.New("smtp unreachable")

	_, err := svc.SendReminder(context.Background(), domain.SendReminderParams{
		InvoiceID: inv.ID,
		CreatedBy: uuid.New(),
	})
	require.Error(t, err)

	// The failed attempt is still on record.
	history, err := svc.ListReminders(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].IsSent)
	assert.Contains(t, history[0].ErrorMessage, "smtp unreachable")
}

func TestSendReminderGuards(t *testing.T) {
	svc, invSvc, repo, _ := reminderFixture(t)

	draft := seedInvoice(t, invSvc, repo, domain.InvoiceStatusDraft)
	_, err := svc.SendReminder(context.Background(), domain.SendReminderParams{
		InvoiceID: draft.ID,
		CreatedBy: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotRemindable)

	unknown := domain.ReminderType("pigeon")
	sent := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)
	_, err = svc.SendReminder(context.Background(), domain.SendReminderParams{
		InvoiceID: sent.ID,
		Type:      unknown,
		CreatedBy: uuid.New(),
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestSendReminderDisabledInSettings(t *testing.T) {
	svc, invSvc, repo, _ := reminderFixture(t)
	inv := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)

	settings := NewSettingsService(repo, events.NewNoopPublisher(), testLogger())
	disabled := false
	_, err := settings.UpdateSettings(context.Background(), domain.UpdateSettingsParams{
		EnableReminders: &disabled,
		UpdatedBy:       uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.SendReminder(context.Background(), domain.SendReminderParams{
		InvoiceID: inv.ID,
		CreatedBy: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrRemindersDisabled)
}

func TestSendOverdueReminders(t *testing.T) {
	svc, invSvc, repo, notifier := reminderFixture(t)

	seedInvoice(t, invSvc, repo, domain.InvoiceStatusOverdue)
	seedInvoice(t, invSvc, repo, domain.InvoiceStatusOverdue)
	seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent) // not overdue, skipped

	sent, failed, err := svc.SendOverdueReminders(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, notifier.reminders)
}
