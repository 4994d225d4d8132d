package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/events"
	"github.com/haldorsen/norn/internal/gateway"
	"github.com/haldorsen/norn/internal/notify"
	"github.com/haldorsen/norn/internal/repository"
	"github.com/haldorsen/norn/internal/telemetry"
)

// InvoiceService implements domain.InvoiceService over the repository.
// Every mutation runs in one transaction: lock the row, re-check the
// guard, mutate, persist, and append the audit entry. If the audit write
// fails the whole mutation rolls back.
type InvoiceService struct {
	repo     repository.Repository
	settings domain.SettingsService
	notifier notify.Sender
	gateway  gateway.Provider
	events   events.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

// NewInvoiceService creates the invoice lifecycle service. gateway may
// be nil when no payment provider is configured.
func NewInvoiceService(
	repo repository.Repository,
	settings domain.SettingsService,
	notifier notify.Sender,
	gw gateway.Provider,
	publisher events.Publisher,
	logger zerolog.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:     repo,
		settings: settings,
		notifier: notifier,
		gateway:  gw,
		events:   publisher,
		logger:   logger.With().Str("service", "invoice").Logger(),
		now:      time.Now,
	}
}

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return domain.Invalid("At least one line item is required")
	}
	for i, item := range items {
		if item.Description == "" {
			return domain.Invalid("Line item %d: description is required", i+1)
		}
		if item.Quantity <= 0 {
			return domain.Invalid("Line item %d: quantity must be greater than zero", i+1)
		}
		if item.UnitPriceCents < 0 {
			return domain.Invalid("Line item %d: unit price cannot be negative", i+1)
		}
	}
	return nil
}

// CreateInvoice creates a draft invoice with all derived amounts
// computed and an audit entry recorded.
func (s *InvoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.create"

	if err := validateItems(params.Items); err != nil {
		return nil, domain.WrapError(op, err)
	}
	if params.Type != "" && !params.Type.IsValid() {
		return nil, domain.WrapError(op, domain.Invalid("Unknown invoice type: %s", params.Type))
	}
	if params.BillTo.Name == "" || params.BillTo.Email == "" {
		return nil, domain.WrapError(op, domain.Invalid("Bill-to name and email are required"))
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	now := s.now()
	issueDate := now.Truncate(24 * time.Hour)
	if params.IssueDate != nil {
		issueDate = *params.IssueDate
	}
	dueDate := issueDate.AddDate(0, 0, settings.DefaultPaymentTerms)
	if params.DueDate != nil {
		dueDate = *params.DueDate
	}
	if dueDate.Before(issueDate) {
		return nil, domain.WrapError(op, domain.Invalid("Due date cannot precede the issue date"))
	}

	invType := params.Type
	if invType == "" {
		invType = domain.InvoiceTypeStandard
	}
	currency := params.Currency
	if currency == "" {
		currency = settings.DefaultCurrency
	}
	notes := params.Notes
	if notes == "" {
		notes = settings.DefaultNotes
	}
	terms := params.Terms
	if terms == "" {
		terms = settings.DefaultTerms
	}

	inv := &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: params.InvoiceNumber,
		Type:          invType,
		Status:        domain.InvoiceStatusDraft,
		PaymentStatus: domain.PaymentStatusPending,
		CustomerID:    params.CustomerID,
		PartnerID:     params.PartnerID,
		BookingID:     params.BookingID,
		BillTo:        params.BillTo,
		ShipTo:        params.ShipTo,
		Items:         params.Items,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      currency,
		DiscountCents: params.DiscountCents,
		ShippingCents: params.ShippingCents,
		Taxes:         params.Taxes,
		Notes:         notes,
		Terms:         terms,
		CustomFields:  params.CustomFields,
		CreatedBy:     params.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyAmounts(inv)

	err = s.repo.ExecTx(ctx, func(q repository.Querier) error {
		if inv.InvoiceNumber == "" {
			if !settings.AutoGenerateNumbers {
				return domain.Invalid("Invoice number is required when auto-generation is disabled")
			}
			prefix, number, err := q.IncrementInvoiceNumber(ctx)
			if err != nil {
				return domain.ErrInvoiceNumberGeneration
			}
			inv.InvoiceNumber = fmt.Sprintf("%s-%04d", prefix, number)
		}

		if err := q.CreateInvoice(ctx, inv); err != nil {
			return err
		}

		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionCreated,
			Description: fmt.Sprintf("Invoice %s created", inv.InvoiceNumber),
			NewValues:   invoiceSnapshot(inv),
			PerformedBy: params.CreatedBy,
			PerformedAt: now,
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Int64("total_cents", inv.TotalCents).
		Msg("invoice created")

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCreated.WithLabelValues(string(inv.Type)).Inc()
		telemetry.Business.InvoiceValue.WithLabelValues(string(inv.Type)).Observe(float64(inv.TotalCents))
	}
	s.publish(ctx, events.SubjectInvoiceCreated, inv, params.CreatedBy)

	return inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, domain.WrapError("invoice.get", err)
	}
	return inv, nil
}

// GetInvoiceByNumber retrieves an invoice by its human-readable number.
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	inv, err := s.repo.GetInvoiceByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, domain.WrapError("invoice.get_by_number", err)
	}
	return inv, nil
}

// ListInvoices lists invoices matching the filter plus the total count.
func (s *InvoiceService) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, int64, error) {
	const op = "invoice.list"

	invoices, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, 0, domain.WrapError(op, err)
	}
	total, err := s.repo.CountInvoices(ctx, filter)
	if err != nil {
		return nil, 0, domain.WrapError(op, err)
	}
	return invoices, total, nil
}

// UpdateInvoice updates a draft or pending invoice and recomputes the
// derived amounts.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, invoiceID uuid.UUID, params domain.UpdateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.update"

	if params.Items != nil {
		if err := validateItems(params.Items); err != nil {
			return nil, domain.WrapError(op, err)
		}
	}

	var updated *domain.Invoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		inv, err := q.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.CanBeEdited() {
			return domain.ErrInvoiceNotEditable
		}

		old := invoiceSnapshot(inv)

		if params.BillTo != nil {
			inv.BillTo = *params.BillTo
		}
		if params.ShipTo != nil {
			inv.ShipTo = params.ShipTo
		}
		if params.Items != nil {
			inv.Items = params.Items
		}
		if params.IssueDate != nil {
			inv.IssueDate = *params.IssueDate
		}
		if params.DueDate != nil {
			inv.DueDate = *params.DueDate
		}
		if params.DiscountCents != nil {
			inv.DiscountCents = *params.DiscountCents
		}
		if params.ShippingCents != nil {
			inv.ShippingCents = *params.ShippingCents
		}
		if params.Taxes != nil {
			inv.Taxes = params.Taxes
		}
		if params.Notes != nil {
			inv.Notes = *params.Notes
		}
		if params.Terms != nil {
			inv.Terms = *params.Terms
		}
		if params.CustomFields != nil {
			inv.CustomFields = params.CustomFields
		}
		if inv.DueDate.Before(inv.IssueDate) {
			return domain.Invalid("Due date cannot precede the issue date")
		}

		inv.UpdatedBy = &params.UpdatedBy
		applyAmounts(inv)

		if err := q.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		updated = inv
		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionUpdated,
			Description: fmt.Sprintf("Invoice %s updated", inv.InvoiceNumber),
			OldValues:   old,
			NewValues:   invoiceSnapshot(inv),
			PerformedBy: params.UpdatedBy,
			PerformedAt: s.now(),
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return updated, nil
}

// DeleteInvoice deletes a draft invoice. The deletion is recorded on the
// audit trail, which carries no foreign key to invoices and so outlives
// the deleted row.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) error {
	const op = "invoice.delete"

	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		inv, err := q.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvoiceStatusDraft {
			return domain.ErrInvoiceNotDraft
		}
		if err := q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionDeleted,
			Description: fmt.Sprintf("Invoice %s deleted", inv.InvoiceNumber),
			OldValues:   invoiceSnapshot(inv),
			PerformedBy: actorID,
			PerformedAt: s.now(),
		}); err != nil {
			return err
		}
		return q.DeleteInvoice(ctx, invoiceID)
	})
	if err != nil {
		return domain.WrapError(op, err)
	}

	s.logger.Info().Str("invoice_id", invoiceID.String()).Msg("invoice deleted")
	return nil
}

// SendInvoice issues a draft invoice to the billed party.
func (s *InvoiceService) SendInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.send",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionSent,
		guard: func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusDraft {
				return domain.ErrInvoiceNotDraft
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusSent
			inv.SentAt = &now
		},
	})
	if err != nil {
		return nil, err
	}

	if s.gateway != nil && inv.BalanceCents > 0 {
		intent, err := s.gateway.CreatePaymentIntent(ctx, inv)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("invoice_number", inv.InvoiceNumber).
				Msg("payment intent creation failed")
		} else {
			s.logger.Info().
				Str("invoice_number", inv.InvoiceNumber).
				Str("intent_reference", intent.Reference).
				Msg("payment intent created")
		}
	}

	if err := s.notifier.SendInvoiceIssued(ctx, inv); err != nil {
		s.logger.Warn().Err(err).
			Str("invoice_number", inv.InvoiceNumber).
			Msg("issue notification failed")
	}

	s.publish(ctx, events.SubjectInvoiceSent, inv, actorID)
	return inv, nil
}

// SubmitInvoice moves a draft invoice into pending for approval.
func (s *InvoiceService) SubmitInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, transitionParams{
		op:        "invoice.submit",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionSubmitted,
		guard: func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusDraft {
				return domain.ErrInvoiceNotDraft
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusPending
		},
	})
}

// ApproveInvoice approves a pending invoice.
func (s *InvoiceService) ApproveInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.approve",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionApproved,
		guard: func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusPending {
				return domain.ErrInvoiceNotPending
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusApproved
			inv.ApprovedAt = &now
			inv.ApprovedBy = &actorID
		},
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectInvoiceApproved, inv, actorID)
	return inv, nil
}

// RejectInvoice rejects a pending invoice with a reason.
func (s *InvoiceService) RejectInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*domain.Invoice, error) {
	if reason == "" {
		return nil, domain.WrapError("invoice.reject", domain.ErrReasonRequired)
	}
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.reject",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionRejected,
		describe:  reason,
		guard: func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusPending {
				return domain.ErrInvoiceNotPending
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusRejected
			inv.RejectedAt = &now
			inv.RejectedBy = &actorID
			inv.RejectionReason = reason
		},
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectInvoiceRejected, inv, actorID)
	return inv, nil
}

// CancelInvoice cancels an invoice that is not paid, cancelled, or voided.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*domain.Invoice, error) {
	if reason == "" {
		return nil, domain.WrapError("invoice.cancel", domain.ErrReasonRequired)
	}
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.cancel",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionCancelled,
		describe:  reason,
		guard: func(inv *domain.Invoice) error {
			if !inv.CanBeCancelled() {
				return domain.ErrInvoiceNotCancellable
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusCancelled
			inv.CancelledAt = &now
			inv.CancelledBy = &actorID
			inv.CancellationReason = reason
		},
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectInvoiceCancelled, inv, actorID)
	return inv, nil
}

// VoidInvoice voids an invoice that is not already voided. Unlike
// cancellation, voiding applies to paid invoices as well.
func (s *InvoiceService) VoidInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*domain.Invoice, error) {
	if reason == "" {
		return nil, domain.WrapError("invoice.void", domain.ErrReasonRequired)
	}
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.void",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionVoided,
		describe:  reason,
		guard: func(inv *domain.Invoice) error {
			if inv.Status == domain.InvoiceStatusVoided {
				return domain.ErrInvoiceAlreadyVoided
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusVoided
			inv.VoidedAt = &now
			inv.VoidedBy = &actorID
			inv.VoidReason = reason
		},
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectInvoiceVoided, inv, actorID)
	return inv, nil
}

// MarkInvoiceViewed transitions a sent invoice to viewed.
func (s *InvoiceService) MarkInvoiceViewed(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, transitionParams{
		op:        "invoice.mark_viewed",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionViewed,
		guard: func(inv *domain.Invoice) error {
			if inv.Status != domain.InvoiceStatusSent {
				return domain.ErrInvoiceNotSent
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusViewed
			inv.ViewedAt = &now
		},
	})
}

// overdueEligible are the statuses the overdue transition may leave from.
func overdueEligible(status domain.InvoiceStatus) bool {
	switch status {
	case domain.InvoiceStatusPending, domain.InvoiceStatusSent,
		domain.InvoiceStatusViewed, domain.InvoiceStatusApproved,
		domain.InvoiceStatusPartiallyPaid:
		return true
	}
	return false
}

// MarkInvoiceOverdue transitions an invoice past its due date with an
// outstanding balance to overdue.
func (s *InvoiceService) MarkInvoiceOverdue(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	now := s.now()
	inv, err := s.transition(ctx, transitionParams{
		op:        "invoice.mark_overdue",
		invoiceID: invoiceID,
		actorID:   actorID,
		action:    domain.AuditActionMarkedOverdue,
		guard: func(inv *domain.Invoice) error {
			if !overdueEligible(inv.Status) {
				return domain.ErrInvoiceNotOverdue
			}
			if !now.After(inv.DueDate) || inv.BalanceCents <= 0 {
				return domain.ErrInvoiceNotOverdue
			}
			return nil
		},
		mutate: func(inv *domain.Invoice, now time.Time) {
			inv.Status = domain.InvoiceStatusOverdue
		},
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.SubjectInvoiceOverdue, inv, actorID)
	return inv, nil
}

// MarkInvoicesOverdue sweeps all eligible invoices past due. One invoice
// failing never aborts the sweep.
func (s *InvoiceService) MarkInvoicesOverdue(ctx context.Context, actorID uuid.UUID) (int, error) {
	const op = "invoice.mark_invoices_overdue"

	ids, err := s.repo.ListOverdueCandidateIDs(ctx, s.now())
	if err != nil {
		return 0, domain.WrapError(op, err)
	}

	marked := 0
	for _, id := range ids {
		if _, err := s.MarkInvoiceOverdue(ctx, id, actorID); err != nil {
			s.logger.Warn().Err(err).Str("invoice_id", id.String()).Msg("overdue transition failed")
			continue
		}
		marked++
	}
	return marked, nil
}

// transitionParams describes one guarded lifecycle transition.
type transitionParams struct {
	op        string
	invoiceID uuid.UUID
	actorID   uuid.UUID
	action    string
	describe  string
	guard     func(inv *domain.Invoice) error
	mutate    func(inv *domain.Invoice, now time.Time)
}

func (s *InvoiceService) transition(ctx context.Context, p transitionParams) (*domain.Invoice, error) {
	var updated *domain.Invoice
	now := s.now()

	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		inv, err := q.GetInvoiceForUpdate(ctx, p.invoiceID)
		if err != nil {
			return err
		}
		if err := p.guard(inv); err != nil {
			return err
		}

		oldStatus := inv.Status
		p.mutate(inv, now)
		inv.UpdatedBy = &p.actorID

		if err := q.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		description := p.describe
		if description == "" {
			description = fmt.Sprintf("Invoice %s: %s -> %s", inv.InvoiceNumber, oldStatus, inv.Status)
		}

		if err := q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      p.action,
			Description: description,
			OldValues:   map[string]any{"status": oldStatus},
			NewValues:   map[string]any{"status": inv.Status},
			PerformedBy: p.actorID,
			PerformedAt: now,
		}); err != nil {
			return err
		}

		updated = inv
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(p.op, err)
	}

	s.logger.Info().
		Str("invoice_id", updated.ID.String()).
		Str("invoice_number", updated.InvoiceNumber).
		Str("status", string(updated.Status)).
		Msg("invoice transitioned")

	if telemetry.Business != nil {
		telemetry.Business.InvoicesTransitions.WithLabelValues(string(updated.Status)).Inc()
	}
	return updated, nil
}

func (s *InvoiceService) publish(ctx context.Context, subject string, inv *domain.Invoice, actorID uuid.UUID) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, subject, events.InvoiceEvent{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		TotalCents:    inv.TotalCents,
		BalanceCents:  inv.BalanceCents,
		ActorID:       actorID,
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}

// invoiceSnapshot captures the audit-relevant fields of an invoice.
func invoiceSnapshot(inv *domain.Invoice) map[string]any {
	return map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"type":           inv.Type,
		"status":         inv.Status,
		"payment_status": inv.PaymentStatus,
		"total_cents":    inv.TotalCents,
		"paid_cents":     inv.PaidCents,
		"balance_cents":  inv.BalanceCents,
		"due_date":       inv.DueDate,
	}
}
