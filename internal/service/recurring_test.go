package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/events"
)

func TestNthOccurrenceCalendarClamping(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		freq  domain.RecurrenceFrequency
		n     int
		want  time.Time
	}{
		{
			name:  "daily",
			start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyDaily,
			n:     3,
			want:  time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "weekly",
			start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyWeekly,
			n:     2,
			want:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly from Jan 31 clamps to leap Feb 29",
			start: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyMonthly,
			n:     1,
			want:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly from Jan 31 returns to anchor day in March",
			start: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyMonthly,
			n:     2,
			want:  time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly from Jan 31 non-leap clamps to Feb 28",
			start: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyMonthly,
			n:     1,
			want:  time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "quarterly from Nov 30 lands on Feb 28",
			start: time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyQuarterly,
			n:     1,
			want:  time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "yearly from Feb 29 clamps to Feb 28",
			start: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyYearly,
			n:     1,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "yearly from Feb 29 to next leap year keeps Feb 29",
			start: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			freq:  domain.FrequencyYearly,
			n:     4,
			want:  time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nthOccurrence(tt.start, tt.freq, tt.n)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func recurringFixture(t *testing.T) (*RecurringService, *fakeRepo, *domain.InvoiceTemplate, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	settings := NewSettingsService(repo, events.NewNoopPublisher(), testLogger())
	notifier := &fakeNotifier{}
	svc := NewRecurringService(repo, settings, notifier, testLogger(), 0)

	tmplSvc := NewTemplateService(repo, testLogger())
	tmpl, err := tmplSvc.CreateTemplate(context.Background(), domain.CreateTemplateParams{
		Name: "Monthly commission",
		Type: domain.InvoiceTypeCommission,
		TemplateData: domain.TemplateData{
			Items:     testItems(),
			DueInDays: 14,
		},
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)
	return svc, repo, tmpl, notifier
}

func scheduleParams(tmpl *domain.InvoiceTemplate, start time.Time) domain.CreateRecurringParams {
	return domain.CreateRecurringParams{
		TemplateID: tmpl.ID,
		CustomerID: uuid.New(),
		BillTo:     domain.Contact{Name: "Acme Travel", Email: "billing@acme.test"},
		Frequency:  domain.FrequencyMonthly,
		StartDate:  start,
		CreatedBy:  uuid.New(),
	}
}

func TestCreateRecurringValidation(t *testing.T) {
	svc, _, tmpl, _ := recurringFixture(t)
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	bad := scheduleParams(tmpl, start)
	bad.Frequency = domain.RecurrenceFrequency("fortnightly")
	_, err := svc.CreateRecurring(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	bad = scheduleParams(tmpl, start)
	end := start.AddDate(0, 0, -1)
	bad.EndDate = &end
	_, err = svc.CreateRecurring(context.Background(), bad)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	bad = scheduleParams(tmpl, start)
	bad.TemplateID = uuid.New()
	_, err = svc.CreateRecurring(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	ok := scheduleParams(tmpl, start)
	rec, err := svc.CreateRecurring(context.Background(), ok)
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
	assert.True(t, rec.NextGenerationDate.Equal(start))
}

func TestGenerateDueInvoices(t *testing.T) {
	svc, repo, tmpl, notifier := recurringFixture(t)
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	rec, err := svc.CreateRecurring(context.Background(), scheduleParams(tmpl, start))
	require.NoError(t, err)

	result, err := svc.GenerateDueInvoices(context.Background(), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Details, 1)
	require.NotNil(t, result.Details[0].InvoiceID)

	inv, err := repo.GetInvoice(context.Background(), *result.Details[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceTypeCommission, inv.Type)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, int64(12500), inv.TotalCents)
	assert.Equal(t, inv.IssueDate.AddDate(0, 0, 14), inv.DueDate)
	assert.Equal(t, []string{domain.AuditActionCreated}, repo.auditActions(inv.ID))
	assert.Equal(t, 0, notifier.issued)

	got, err := svc.GetRecurring(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentOccurrences)
	assert.True(t, got.NextGenerationDate.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
		"next generation %v", got.NextGenerationDate)

	// Not due again until the next occurrence.
	result, err = svc.GenerateDueInvoices(context.Background(), start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
}

func TestGenerateDeactivatesExhaustedSchedule(t *testing.T) {
	svc, _, tmpl, _ := recurringFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	params := scheduleParams(tmpl, start)
	max := 1
	params.MaxOccurrences = &max
	rec, err := svc.CreateRecurring(context.Background(), params)
	require.NoError(t, err)

	result, err := svc.GenerateDueInvoices(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.True(t, result.Details[0].Deactivated)

	got, err := svc.GetRecurring(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Reactivation is refused while exhausted.
	_, err = svc.ActivateRecurring(context.Background(), rec.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRecurringExhausted)
}

func TestGenerateAutoSend(t *testing.T) {
	svc, repo, tmpl, notifier := recurringFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	params := scheduleParams(tmpl, start)
	params.AutoSend = true
	_, err := svc.CreateRecurring(context.Background(), params)
	require.NoError(t, err)

	result, err := svc.GenerateDueInvoices(context.Background(), start)
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)

	inv, err := repo.GetInvoice(context.Background(), *result.Details[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	require.NotNil(t, inv.SentAt)

	// Auto-send leaves the same trail as an explicit send and notifies
	// the billed party.
	assert.Equal(t, []string{domain.AuditActionCreated, domain.AuditActionSent}, repo.auditActions(inv.ID))
	assert.Equal(t, 1, notifier.issued)
}

func TestGenerateIsolatesFailures(t *testing.T) {
	svc, repo, tmpl, _ := recurringFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	healthy, err := svc.CreateRecurring(context.Background(), scheduleParams(tmpl, start))
	require.NoError(t, err)

	broken, err := svc.CreateRecurring(context.Background(), scheduleParams(tmpl, start))
	require.NoError(t, err)

	// Point one schedule at a template that no longer exists.
	rec, err := repo.GetRecurring(context.Background(), broken.ID)
	require.NoError(t, err)
	rec.TemplateID = uuid.New()
	require.NoError(t, repo.UpdateRecurring(context.Background(), rec))

	result, err := svc.GenerateDueInvoices(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)

	got, err := svc.GetRecurring(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentOccurrences)
}

func TestActivateDeactivateToggles(t *testing.T) {
	svc, _, tmpl, _ := recurringFixture(t)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	rec, err := svc.CreateRecurring(context.Background(), scheduleParams(tmpl, start))
	require.NoError(t, err)
	actor := uuid.New()

	_, err = svc.ActivateRecurring(context.Background(), rec.ID, actor)
	assert.ErrorIs(t, err, domain.ErrRecurringAlreadyActive)

	paused, err := svc.DeactivateRecurring(context.Background(), rec.ID, actor)
	require.NoError(t, err)
	assert.False(t, paused.IsActive)

	_, err = svc.DeactivateRecurring(context.Background(), rec.ID, actor)
	assert.ErrorIs(t, err, domain.ErrRecurringAlreadyInactive)

	resumed, err := svc.ActivateRecurring(context.Background(), rec.ID, actor)
	require.NoError(t, err)
	assert.True(t, resumed.IsActive)
}
