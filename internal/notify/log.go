package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
)

// LogSender logs notifications instead of delivering them. Used in
// development and wherever no delivery channel is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSender) SendInvoiceIssued(ctx context.Context, inv *domain.Invoice) error {
	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("recipient", inv.BillTo.Email).
		Int64("total_cents", inv.TotalCents).
		Msg("invoice issued notification")
	return nil
}

func (s *LogSender) SendReminder(ctx context.Context, inv *domain.Invoice, reminder *domain.Reminder) error {
	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("recipient", inv.BillTo.Email).
		Str("type", string(reminder.Type)).
		Int64("balance_cents", inv.BalanceCents).
		Msg("payment reminder notification")
	return nil
}
