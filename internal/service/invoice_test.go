package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/events"
	"github.com/haldorsen/norn/internal/gateway"
)

func newInvoiceService(repo *fakeRepo) (*InvoiceService, *fakeNotifier) {
	settings := NewSettingsService(repo, events.NewNoopPublisher(), testLogger())
	notifier := &fakeNotifier{}
	svc := NewInvoiceService(repo, settings, notifier, gateway.NewMockProvider(), events.NewNoopPublisher(), testLogger())
	return svc, notifier
}

func TestCreateInvoiceAssignsNumberAndAmounts(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	actor := uuid.New()

	inv, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		BillTo:    domain.Contact{Name: "Acme Travel", Email: "billing@acme.test"},
		Items:     testItems(),
		CreatedBy: actor,
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-0001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, domain.PaymentStatusPending, inv.PaymentStatus)
	assert.Equal(t, domain.InvoiceTypeStandard, inv.Type)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, int64(12500), inv.SubtotalCents)
	assert.Equal(t, int64(12500), inv.TotalCents)
	assert.Equal(t, int64(12500), inv.BalanceCents)
	assert.Equal(t, inv.IssueDate.AddDate(0, 0, 30), inv.DueDate)

	assert.Equal(t, []string{domain.AuditActionCreated}, repo.auditActions(inv.ID))

	// Numbers keep incrementing.
	second, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		BillTo:    domain.Contact{Name: "Acme Travel", Email: "billing@acme.test"},
		Items:     testItems(),
		CreatedBy: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", second.InvoiceNumber)
}

func TestCreateInvoiceValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)

	tests := []struct {
		name   string
		params domain.CreateInvoiceParams
	}{
		{
			name: "no items",
			params: domain.CreateInvoiceParams{
				BillTo: domain.Contact{Name: "A", Email: "a@test"},
			},
		},
		{
			name: "zero quantity",
			params: domain.CreateInvoiceParams{
				BillTo: domain.Contact{Name: "A", Email: "a@test"},
				Items:  []domain.LineItem{{Description: "x", Quantity: 0, UnitPriceCents: 100}},
			},
		},
		{
			name: "negative unit price",
			params: domain.CreateInvoiceParams{
				BillTo: domain.Contact{Name: "A", Email: "a@test"},
				Items:  []domain.LineItem{{Description: "x", Quantity: 1, UnitPriceCents: -1}},
			},
		},
		{
			name: "missing bill-to",
			params: domain.CreateInvoiceParams{
				Items: testItems(),
			},
		},
		{
			name: "unknown type",
			params: domain.CreateInvoiceParams{
				Type:   domain.InvoiceType("mystery"),
				BillTo: domain.Contact{Name: "A", Email: "a@test"},
				Items:  testItems(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInvoice(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)

	params := domain.CreateInvoiceParams{
		InvoiceNumber: "CUSTOM-1",
		BillTo:        domain.Contact{Name: "A", Email: "a@test"},
		Items:         testItems(),
		CreatedBy:     uuid.New(),
	}
	_, err := svc.CreateInvoice(context.Background(), params)
	require.NoError(t, err)

	_, err = svc.CreateInvoice(context.Background(), params)
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)
}

// seedInvoice creates a draft through the service and force-sets the
// status afterwards so transition guards can be probed directly.
func seedInvoice(t *testing.T, svc *InvoiceService, repo *fakeRepo, status domain.InvoiceStatus) *domain.Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		BillTo:    domain.Contact{Name: "Acme Travel", Email: "billing@acme.test"},
		Items:     testItems(),
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)

	inv.Status = status
	require.NoError(t, repo.UpdateInvoice(context.Background(), inv))
	return inv
}

func TestSendInvoice(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newInvoiceService(repo)
	inv := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)
	actor := uuid.New()

	sent, err := svc.SendInvoice(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, 1, notifier.issued)
	assert.Contains(t, repo.auditActions(inv.ID), domain.AuditActionSent)

	// Sending again is a conflict.
	_, err = svc.SendInvoice(context.Background(), inv.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)
}

func TestTransitionGuards(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.InvoiceStatus
		apply   func(svc *InvoiceService, id, actor uuid.UUID) error
		wantErr error
	}{
		{
			name: "submit requires draft",
			from: domain.InvoiceStatusSent,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.SubmitInvoice(context.Background(), id, actor)
				return err
			},
			wantErr: domain.ErrInvoiceNotDraft,
		},
		{
			name: "approve requires pending",
			from: domain.InvoiceStatusDraft,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.ApproveInvoice(context.Background(), id, actor)
				return err
			},
			wantErr: domain.ErrInvoiceNotPending,
		},
		{
			name: "reject requires pending",
			from: domain.InvoiceStatusApproved,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.RejectInvoice(context.Background(), id, actor, "wrong amount")
				return err
			},
			wantErr: domain.ErrInvoiceNotPending,
		},
		{
			name: "cancel rejects paid",
			from: domain.InvoiceStatusPaid,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.CancelInvoice(context.Background(), id, actor, "customer request")
				return err
			},
			wantErr: domain.ErrInvoiceNotCancellable,
		},
		{
			name: "void rejects voided",
			from: domain.InvoiceStatusVoided,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.VoidInvoice(context.Background(), id, actor, "duplicate")
				return err
			},
			wantErr: domain.ErrInvoiceAlreadyVoided,
		},
		{
			name: "mark viewed requires sent",
			from: domain.InvoiceStatusDraft,
			apply: func(svc *InvoiceService, id, actor uuid.UUID) error {
				_, err := svc.MarkInvoiceViewed(context.Background(), id, actor)
				return err
			},
			wantErr: domain.ErrInvoiceNotSent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc, _ := newInvoiceService(repo)
			inv := seedInvoice(t, svc, repo, tt.from)

			err := tt.apply(svc, inv.ID, uuid.New())
			assert.ErrorIs(t, err, tt.wantErr)

			// Guard failures leave the status untouched.
			got, getErr := svc.GetInvoice(context.Background(), inv.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.from, got.Status)
		})
	}
}

func TestApproveRejectLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	actor := uuid.New()

	inv := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)
	pending, err := svc.SubmitInvoice(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, pending.Status)

	approved, err := svc.ApproveInvoice(context.Background(), inv.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, actor, *approved.ApprovedBy)

	other := seedInvoice(t, svc, repo, domain.InvoiceStatusPending)
	rejected, err := svc.RejectInvoice(context.Background(), other.ID, actor, "missing PO")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusRejected, rejected.Status)
	assert.Equal(t, "missing PO", rejected.RejectionReason)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	inv := seedInvoice(t, svc, repo, domain.InvoiceStatusPending)

	_, err := svc.RejectInvoice(context.Background(), inv.ID, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrReasonRequired)

	_, err = svc.CancelInvoice(context.Background(), inv.ID, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrReasonRequired)

	_, err = svc.VoidInvoice(context.Background(), inv.ID, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrReasonRequired)
}

func TestUpdateInvoiceOnlyWhileEditable(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	notes := "updated notes"

	draft := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)
	updated, err := svc.UpdateInvoice(context.Background(), draft.ID, domain.UpdateInvoiceParams{
		Notes:     &notes,
		Items:     []domain.LineItem{{Description: "Revised", Quantity: 1, UnitPriceCents: 7000}},
		UpdatedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, int64(7000), updated.TotalCents)

	sent := seedInvoice(t, svc, repo, domain.InvoiceStatusSent)
	_, err = svc.UpdateInvoice(context.Background(), sent.ID, domain.UpdateInvoiceParams{
		Notes:     &notes,
		UpdatedBy: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotEditable)
}

func TestDeleteInvoiceOnlyDraft(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)

	draft := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)
	require.NoError(t, svc.DeleteInvoice(context.Background(), draft.ID, uuid.New()))
	_, err := svc.GetInvoice(context.Background(), draft.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	// The trail outlives the invoice and records the deletion.
	assert.Equal(t,
		[]string{domain.AuditActionCreated, domain.AuditActionDeleted},
		repo.auditActions(draft.ID))

	sent := seedInvoice(t, svc, repo, domain.InvoiceStatusSent)
	err = svc.DeleteInvoice(context.Background(), sent.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotDraft)
	assert.Equal(t, []string{domain.AuditActionCreated}, repo.auditActions(sent.ID))
}

func TestMarkInvoicesOverdueSweep(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	actor := uuid.New()

	setDue := func(inv *domain.Invoice, due time.Time) {
		inv.DueDate = due
		require.NoError(t, repo.UpdateInvoice(context.Background(), inv))
	}

	pastDue := seedInvoice(t, svc, repo, domain.InvoiceStatusSent)
	setDue(pastDue, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	notDue := seedInvoice(t, svc, repo, domain.InvoiceStatusSent)
	setDue(notDue, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	stillDraft := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)
	setDue(stillDraft, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	marked, err := svc.MarkInvoicesOverdue(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := svc.GetInvoice(context.Background(), pastDue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, got.Status)

	got, err = svc.GetInvoice(context.Background(), notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, got.Status)
}

func TestAuditWriteFailureRollsBackTransition(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newInvoiceService(repo)
	inv := seedInvoice(t, svc, repo, domain.InvoiceStatusDraft)

	repo.auditErr = domain.Internal("audit.create", errors.New("audit store unavailable"))
	_, err := svc.SendInvoice(context.Background(), inv.ID, uuid.New())
	require.Error(t, err)

	// The status change rolled back with the failed audit write.
	got, err := svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Equal(t, []string{domain.AuditActionCreated}, repo.auditActions(inv.ID))
}
