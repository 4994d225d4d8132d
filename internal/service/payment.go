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
	"github.com/haldorsen/norn/internal/telemetry"
)

// PaymentService implements domain.PaymentService. The ledger is
// append-only: refunds are new rows with a negative amount, and the
// invoice's paid amount, balance, and both statuses are updated in the
// same transaction as the ledger write.
type PaymentService struct {
	repo   repository.Repository
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewPaymentService creates the payment ledger service.
func NewPaymentService(repo repository.Repository, publisher events.Publisher, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		repo:   repo,
		events: publisher,
		logger: logger.With().Str("service", "payment").Logger(),
		now:    time.Now,
	}
}

// payableGuard rejects invoices whose lifecycle state cannot accept a
// payment.
func payableGuard(inv *domain.Invoice) error {
	switch inv.Status {
	case domain.InvoiceStatusDraft, domain.InvoiceStatusCancelled,
		domain.InvoiceStatusVoided, domain.InvoiceStatusRejected:
		return domain.ErrInvoiceNotPayable
	}
	if inv.BalanceCents <= 0 {
		return domain.ErrInvoiceAlreadyPaid
	}
	return nil
}

// settle applies a collected amount to the invoice. The caller holds the
// row lock.
func settle(inv *domain.Invoice, amountCents int64, now time.Time) {
	inv.PaidCents += amountCents
	inv.BalanceCents = inv.TotalCents - inv.PaidCents
	if inv.BalanceCents <= 0 {
		inv.Status = domain.InvoiceStatusPaid
		inv.PaymentStatus = domain.PaymentStatusCompleted
		inv.PaidAt = &now
	} else {
		inv.Status = domain.InvoiceStatusPartiallyPaid
		inv.PaymentStatus = domain.PaymentStatusProcessing
	}
}

// RecordPayment appends a completed payment and settles the invoice
// accordingly. Overpayment is rejected outright.
func (s *PaymentService) RecordPayment(ctx context.Context, params domain.RecordPaymentParams) (*domain.Payment, error) {
	const op = "payment.record"

	if params.AmountCents <= 0 {
		return nil, domain.WrapError(op, domain.ErrPaymentNotPositive)
	}
	if !params.Method.IsValid() {
		return nil, domain.WrapError(op, domain.Invalid("Unknown payment method: %s", params.Method))
	}

	now := s.now()
	paymentDate := now
	if params.PaymentDate != nil {
		paymentDate = *params.PaymentDate
	}

	payment := &domain.Payment{
		ID:          uuid.New(),
		InvoiceID:   params.InvoiceID,
		AmountCents: params.AmountCents,
		Method:      params.Method,
		Status:      domain.PaymentStatusCompleted,
		PaymentDate: paymentDate,
		Reference:   params.Reference,
		Notes:       params.Notes,
		BankDetails: params.BankDetails,
		RecordedBy:  params.RecordedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var inv *domain.Invoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		inv, err = q.GetInvoiceForUpdate(ctx, params.InvoiceID)
		if err != nil {
			return err
		}
		if err := payableGuard(inv); err != nil {
			return err
		}
		if params.AmountCents > inv.BalanceCents {
			return domain.ErrPaymentExceedsBalance
		}

		if err := q.CreatePayment(ctx, payment); err != nil {
			return err
		}

		oldStatus := inv.Status
		settle(inv, params.AmountCents, now)
		inv.UpdatedBy = &params.RecordedBy
		if err := q.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionPaymentRecorded,
			Description: fmt.Sprintf("Payment of %d cents via %s", params.AmountCents, params.Method),
			OldValues:   map[string]any{"status": oldStatus, "paid_cents": inv.PaidCents - params.AmountCents},
			NewValues:   map[string]any{"status": inv.Status, "paid_cents": inv.PaidCents},
			PerformedBy: params.RecordedBy,
			PerformedAt: now,
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("payment_id", payment.ID.String()).
		Int64("amount_cents", params.AmountCents).
		Int64("balance_cents", inv.BalanceCents).
		Msg("payment recorded")

	if telemetry.Business != nil {
		telemetry.Business.PaymentsRecorded.WithLabelValues(string(params.Method)).Inc()
		telemetry.Business.PaymentAmount.WithLabelValues(string(params.Method)).Add(float64(params.AmountCents))
	}

	s.publishPayment(ctx, events.SubjectPaymentRecorded, inv, params.RecordedBy)
	if inv.IsPaid() {
		s.publishPayment(ctx, events.SubjectInvoicePaid, inv, params.RecordedBy)
	}
	return payment, nil
}

// MarkInvoicePaid records the full outstanding balance as one payment.
func (s *PaymentService) MarkInvoicePaid(ctx context.Context, params domain.MarkPaidParams) (*domain.Invoice, error) {
	const op = "payment.mark_paid"

	method := params.Method
	if method == "" {
		method = domain.PaymentMethodOther
	}
	if !method.IsValid() {
		return nil, domain.WrapError(op, domain.Invalid("Unknown payment method: %s", method))
	}

	now := s.now()
	var inv *domain.Invoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		inv, err = q.GetInvoiceForUpdate(ctx, params.InvoiceID)
		if err != nil {
			return err
		}
		if err := payableGuard(inv); err != nil {
			return err
		}

		balance := inv.BalanceCents
		payment := &domain.Payment{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			AmountCents: balance,
			Method:      method,
			Status:      domain.PaymentStatusCompleted,
			PaymentDate: now,
			Reference:   params.Reference,
			Notes:       params.Notes,
			RecordedBy:  params.RecordedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := q.CreatePayment(ctx, payment); err != nil {
			return err
		}

		oldStatus := inv.Status
		settle(inv, balance, now)
		inv.UpdatedBy = &params.RecordedBy
		if err := q.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionMarkedPaid,
			Description: fmt.Sprintf("Invoice %s marked paid, settling %d cents", inv.InvoiceNumber, balance),
			OldValues:   map[string]any{"status": oldStatus},
			NewValues:   map[string]any{"status": inv.Status, "paid_cents": inv.PaidCents},
			PerformedBy: params.RecordedBy,
			PerformedAt: now,
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Int64("paid_cents", inv.PaidCents).
		Msg("invoice marked paid")

	if telemetry.Business != nil {
		telemetry.Business.PaymentsRecorded.WithLabelValues(string(method)).Inc()
		telemetry.Business.InvoicesTransitions.WithLabelValues(string(inv.Status)).Inc()
	}
	s.publishPayment(ctx, events.SubjectInvoicePaid, inv, params.RecordedBy)
	return inv, nil
}

// RefundPayment reverses all or part of a completed payment. The refund
// is a new ledger row with a negative amount; the original payment's
// status becomes refunded or partially_refunded.
func (s *PaymentService) RefundPayment(ctx context.Context, params domain.RefundPaymentParams) (*domain.Payment, error) {
	const op = "payment.refund"

	if params.AmountCents < 0 {
		return nil, domain.WrapError(op, domain.ErrPaymentNotPositive)
	}

	now := s.now()
	var refund *domain.Payment
	var inv *domain.Invoice
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		original, err := q.GetPayment(ctx, params.PaymentID)
		if err != nil {
			return err
		}
		if original.Status != domain.PaymentStatusCompleted {
			return domain.ErrPaymentNotCompleted
		}

		amount := params.AmountCents
		if amount == 0 {
			amount = original.AmountCents
		}
		if amount > original.AmountCents {
			return domain.ErrRefundExceedsPayment
		}

		inv, err = q.GetInvoiceForUpdate(ctx, original.InvoiceID)
		if err != nil {
			return err
		}

		refund = &domain.Payment{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			AmountCents: -amount,
			Method:      original.Method,
			Status:      domain.PaymentStatusCompleted,
			PaymentDate: now,
			Reference:   original.Reference,
			Notes:       params.Reason,
			RecordedBy:  params.RecordedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := q.CreatePayment(ctx, refund); err != nil {
			return err
		}

		refundedStatus := domain.PaymentStatusRefunded
		if amount < original.AmountCents {
			refundedStatus = domain.PaymentStatusPartiallyRefunded
		}
		if err := q.UpdatePaymentStatus(ctx, original.ID, refundedStatus); err != nil {
			return err
		}

		oldStatus := inv.Status
		inv.PaidCents -= amount
		inv.BalanceCents = inv.TotalCents - inv.PaidCents
		switch {
		case inv.PaidCents <= 0:
			inv.PaidCents = 0
			inv.BalanceCents = inv.TotalCents
			inv.Status = domain.InvoiceStatusRefunded
			inv.PaymentStatus = domain.PaymentStatusRefunded
			inv.PaidAt = nil
		default:
			inv.Status = domain.InvoiceStatusPartiallyPaid
			inv.PaymentStatus = domain.PaymentStatusPartiallyRefunded
		}
		inv.UpdatedBy = &params.RecordedBy
		if err := q.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		return q.CreateAuditEntry(ctx, &domain.AuditEntry{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Action:      domain.AuditActionPaymentRefunded,
			Description: fmt.Sprintf("Refund of %d cents against payment %s", amount, original.ID),
			OldValues:   map[string]any{"status": oldStatus, "paid_cents": inv.PaidCents + amount},
			NewValues:   map[string]any{"status": inv.Status, "paid_cents": inv.PaidCents},
			PerformedBy: params.RecordedBy,
			PerformedAt: now,
		})
	})
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("refund_id", refund.ID.String()).
		Int64("amount_cents", -refund.AmountCents).
		Msg("payment refunded")

	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(string(refund.Method)).Inc()
		telemetry.Business.RefundAmount.WithLabelValues(string(refund.Method)).Add(float64(-refund.AmountCents))
	}
	s.publishPayment(ctx, events.SubjectPaymentRefunded, inv, params.RecordedBy)
	return refund, nil
}

// ListInvoicePayments returns one invoice's ledger, oldest first.
func (s *PaymentService) ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	const op = "payment.list_invoice"

	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, domain.WrapError(op, err)
	}
	payments, err := s.repo.ListInvoicePayments(ctx, invoiceID)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return payments, nil
}

// ListPayments returns payments across invoices matching the filter.
func (s *PaymentService) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, int64, error) {
	const op = "payment.list"

	payments, err := s.repo.ListPayments(ctx, filter)
	if err != nil {
		return nil, 0, domain.WrapError(op, err)
	}
	total, err := s.repo.CountPayments(ctx, filter)
	if err != nil {
		return nil, 0, domain.WrapError(op, err)
	}
	return payments, total, nil
}

func (s *PaymentService) publishPayment(ctx context.Context, subject string, inv *domain.Invoice, actorID uuid.UUID) {
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
