package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/telemetry"
)

// BulkService implements domain.BulkService by fanning a request out to
// the per-invoice operations. Every item runs in its own error boundary
// with its own timeout; a failing invoice never aborts the rest.
type BulkService struct {
	invoices    domain.InvoiceService
	payments    domain.PaymentService
	reminders   domain.ReminderService
	exports     domain.ExportService
	analytics   domain.AnalyticsService
	logger      zerolog.Logger
	itemTimeout time.Duration
	now         func() time.Time
}

// NewBulkService creates the bulk executor.
func NewBulkService(
	invoices domain.InvoiceService,
	payments domain.PaymentService,
	reminders domain.ReminderService,
	exports domain.ExportService,
	analytics domain.AnalyticsService,
	logger zerolog.Logger,
	itemTimeout time.Duration,
) *BulkService {
	if itemTimeout <= 0 {
		itemTimeout = 30 * time.Second
	}
	return &BulkService{
		invoices:    invoices,
		payments:    payments,
		reminders:   reminders,
		exports:     exports,
		analytics:   analytics,
		logger:      logger.With().Str("service", "bulk").Logger(),
		itemTimeout: itemTimeout,
		now:         time.Now,
	}
}

// Execute applies one operation to every invoice in the request.
func (s *BulkService) Execute(ctx context.Context, req domain.BulkRequest) (*domain.BulkResult, error) {
	const op = "bulk.execute"

	if !req.Operation.IsValid() {
		return nil, domain.WrapError(op, domain.ErrUnknownBulkOperation)
	}
	if len(req.InvoiceIDs) == 0 {
		return nil, domain.WrapError(op, domain.ErrBulkNoInvoices)
	}
	switch req.Operation {
	case domain.BulkOpReject, domain.BulkOpCancel:
		if req.Reason == "" {
			return nil, domain.WrapError(op, domain.ErrReasonRequired)
		}
	case domain.BulkOpExport:
		if !req.Format.IsValid() {
			return nil, domain.WrapError(op, domain.ErrInvalidFormat)
		}
	}

	result := &domain.BulkResult{
		TotalProcessed: len(req.InvoiceIDs),
		Timestamp:      s.now(),
	}

	for _, id := range seenOnce(req.InvoiceIDs) {
		itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
		err := s.applyOne(itemCtx, req, id)
		cancel()

		item := domain.BulkItemResult{InvoiceID: id, Success: err == nil}
		outcome := "success"
		if err != nil {
			item.Error = domain.ErrorMessage(err)
			outcome = "failure"
			result.Failed++
		} else {
			result.Successful++
		}
		result.Details = append(result.Details, item)

		if telemetry.Business != nil {
			telemetry.Business.BulkItems.WithLabelValues(string(req.Operation), outcome).Inc()
		}
	}
	result.TotalProcessed = len(result.Details)

	if req.Operation == domain.BulkOpExport && result.Successful > 0 {
		var ids []uuid.UUID
		for _, item := range result.Details {
			if item.Success {
				ids = append(ids, item.InvoiceID)
			}
		}
		export, err := s.exports.InitiateExport(ctx, domain.InitiateExportParams{
			Format:      req.Format,
			Filter:      domain.InvoiceFilter{IDs: ids},
			RequestedBy: req.ActorID,
		})
		if err != nil {
			return nil, domain.WrapError(op, err)
		}
		result.ExportID = &export.ID
	}

	// A sweep that changed anything stales the cached summary. Exports
	// and reminders leave the portfolio figures untouched.
	switch req.Operation {
	case domain.BulkOpExport, domain.BulkOpSendReminder:
	default:
		if result.Successful > 0 && s.analytics != nil {
			s.analytics.InvalidateSummary(ctx)
		}
	}

	s.logger.Info().
		Str("operation", string(req.Operation)).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("bulk request complete")
	return result, nil
}

func (s *BulkService) applyOne(ctx context.Context, req domain.BulkRequest, id uuid.UUID) error {
	switch req.Operation {
	case domain.BulkOpSend:
		_, err := s.invoices.SendInvoice(ctx, id, req.ActorID)
		return err
	case domain.BulkOpSubmit:
		_, err := s.invoices.SubmitInvoice(ctx, id, req.ActorID)
		return err
	case domain.BulkOpApprove:
		_, err := s.invoices.ApproveInvoice(ctx, id, req.ActorID)
		return err
	case domain.BulkOpReject:
		_, err := s.invoices.RejectInvoice(ctx, id, req.ActorID, req.Reason)
		return err
	case domain.BulkOpCancel:
		_, err := s.invoices.CancelInvoice(ctx, id, req.ActorID, req.Reason)
		return err
	case domain.BulkOpDelete:
		return s.invoices.DeleteInvoice(ctx, id, req.ActorID)
	case domain.BulkOpMarkPaid:
		_, err := s.payments.MarkInvoicePaid(ctx, domain.MarkPaidParams{
			InvoiceID:  id,
			RecordedBy: req.ActorID,
		})
		return err
	case domain.BulkOpMarkOverdue:
		_, err := s.invoices.MarkInvoiceOverdue(ctx, id, req.ActorID)
		return err
	case domain.BulkOpSendReminder:
		_, err := s.reminders.SendReminder(ctx, domain.SendReminderParams{
			InvoiceID: id,
			Message:   req.Message,
			CreatedBy: req.ActorID,
		})
		return err
	case domain.BulkOpExport:
		// Validated per item; the single export job is initiated after
		// the loop over the ids that exist.
		_, err := s.invoices.GetInvoice(ctx, id)
		return err
	}
	return domain.ErrUnknownBulkOperation
}

// seenOnce preserves order while dropping duplicate ids.
func seenOnce(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
