// Package worker runs the background passes that keep the invoice
// portfolio moving without operator action: recurring generation,
// overdue marking, overdue reminders, and export processing.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal"
	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/telemetry"
)

// SystemActor attributes worker-driven state changes in the audit trail.
var SystemActor = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Worker owns the ticker loops. Each pass runs independently on its own
// interval; a slow or failing pass never blocks the others.
type Worker struct {
	invoices  domain.InvoiceService
	recurring domain.RecurringService
	reminders domain.ReminderService
	exports   domain.ExportService

	cfg    internal.WorkerConfig
	logger zerolog.Logger
}

// New creates the background worker.
func New(
	invoices domain.InvoiceService,
	recurring domain.RecurringService,
	reminders domain.ReminderService,
	exports domain.ExportService,
	cfg internal.WorkerConfig,
	logger zerolog.Logger,
) *Worker {
	if cfg.RecurringInterval <= 0 {
		cfg.RecurringInterval = time.Hour
	}
	if cfg.OverdueInterval <= 0 {
		cfg.OverdueInterval = time.Hour
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = 24 * time.Hour
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = 10 * time.Second
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 5 * time.Minute
	}

	return &Worker{
		invoices:  invoices,
		recurring: recurring,
		reminders: reminders,
		exports:   exports,
		cfg:       cfg,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Run starts all passes and blocks until ctx is cancelled. Every pass
// also fires once at startup so a restarted service catches up
// immediately instead of waiting a full interval.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().
		Dur("recurring_interval", w.cfg.RecurringInterval).
		Dur("overdue_interval", w.cfg.OverdueInterval).
		Dur("reminder_interval", w.cfg.ReminderInterval).
		Dur("export_interval", w.cfg.ExportInterval).
		Msg("worker starting")

	var wg sync.WaitGroup
	passes := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"recurring_generation", w.cfg.RecurringInterval, w.runRecurring},
		{"overdue_marking", w.cfg.OverdueInterval, w.runOverdue},
		{"overdue_reminders", w.cfg.ReminderInterval, w.runReminders},
		{"export_processing", w.cfg.ExportInterval, w.runExports},
	}

	for _, p := range passes {
		wg.Add(1)
		go func(name string, interval time.Duration, run func(context.Context) error) {
			defer wg.Done()
			w.loop(ctx, name, interval, run)
		}(p.name, p.interval, p.run)
	}

	wg.Wait()
	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.pass(ctx, name, run)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx, name, run)
		}
	}
}

func (w *Worker) pass(ctx context.Context, name string, run func(context.Context) error) {
	passCtx, cancel := context.WithTimeout(ctx, w.cfg.PassTimeout)
	defer cancel()

	start := time.Now()
	err := run(passCtx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		w.logger.Error().Err(err).Str("pass", name).Dur("elapsed", elapsed).Msg("worker pass failed")
	}
	if telemetry.Business != nil {
		telemetry.Business.WorkerPasses.WithLabelValues(name, outcome).Inc()
		telemetry.Business.WorkerPassDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

func (w *Worker) runRecurring(ctx context.Context) error {
	result, err := w.recurring.GenerateDueInvoices(ctx, time.Now())
	if err != nil {
		return err
	}
	if result.Generated > 0 || result.Failed > 0 {
		w.logger.Info().
			Int("generated", result.Generated).
			Int("failed", result.Failed).
			Msg("recurring generation pass")
	}
	return nil
}

func (w *Worker) runOverdue(ctx context.Context) error {
	marked, err := w.invoices.MarkInvoicesOverdue(ctx, SystemActor)
	if err != nil {
		return err
	}
	if marked > 0 {
		w.logger.Info().Int("marked", marked).Msg("overdue marking pass")
	}
	return nil
}

func (w *Worker) runReminders(ctx context.Context) error {
	sent, failed, err := w.reminders.SendOverdueReminders(ctx, SystemActor)
	if err != nil {
		return err
	}
	if sent > 0 || failed > 0 {
		w.logger.Info().Int("sent", sent).Int("failed", failed).Msg("overdue reminder pass")
	}
	return nil
}

func (w *Worker) runExports(ctx context.Context) error {
	processed, err := w.exports.ProcessPendingExports(ctx)
	if err != nil {
		return err
	}
	if processed > 0 {
		w.logger.Info().Int("processed", processed).Msg("export processing pass")
	}
	return nil
}
