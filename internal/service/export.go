package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/render"
	"github.com/haldorsen/norn/internal/repository"
	"github.com/haldorsen/norn/internal/storage"
	"github.com/haldorsen/norn/internal/telemetry"
)

const exportPageSize = 500

// ExportService implements domain.ExportService. Initiation only records
// a pending job; the worker claims jobs one at a time, renders the
// artifact, and uploads it to storage.
type ExportService struct {
	repo    repository.Repository
	storage storage.Storage
	logger  zerolog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewExportService creates the export service. ttl is how long artifacts
// stay downloadable.
func NewExportService(repo repository.Repository, store storage.Storage, logger zerolog.Logger, ttl time.Duration) *ExportService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExportService{
		repo:    repo,
		storage: store,
		logger:  logger.With().Str("service", "export").Logger(),
		ttl:     ttl,
		now:     time.Now,
	}
}

// InitiateExport records a pending export job and returns immediately.
func (s *ExportService) InitiateExport(ctx context.Context, params domain.InitiateExportParams) (*domain.InvoiceExport, error) {
	const op = "export.initiate"

	if !params.Format.IsValid() {
		return nil, domain.WrapError(op, domain.ErrInvalidFormat)
	}

	now := s.now()
	export := &domain.InvoiceExport{
		ID:          uuid.New(),
		Status:      domain.ExportStatusPending,
		Format:      params.Format,
		Filter:      params.Filter,
		RequestedBy: params.RequestedBy,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateExport(ctx, export); err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("export_id", export.ID.String()).
		Str("format", string(export.Format)).
		Msg("export initiated")
	return export, nil
}

// GetExport returns the current state of an export job.
func (s *ExportService) GetExport(ctx context.Context, exportID uuid.UUID) (*domain.InvoiceExport, error) {
	export, err := s.repo.GetExport(ctx, exportID)
	if err != nil {
		return nil, domain.WrapError("export.get", err)
	}
	return export, nil
}

// DownloadExport streams a completed, unexpired artifact.
func (s *ExportService) DownloadExport(ctx context.Context, exportID uuid.UUID) (io.ReadCloser, *domain.InvoiceExport, error) {
	const op = "export.download"

	export, err := s.repo.GetExport(ctx, exportID)
	if err != nil {
		return nil, nil, domain.WrapError(op, err)
	}
	if export.Status != domain.ExportStatusCompleted {
		return nil, nil, domain.WrapError(op, domain.ErrExportNotReady)
	}
	if export.IsExpired(s.now()) {
		return nil, nil, domain.WrapError(op, domain.ErrExportExpired)
	}

	rc, err := s.storage.Get(ctx, exportKey(export))
	if err != nil {
		return nil, nil, domain.WrapError(op, err)
	}
	return rc, export, nil
}

// ProcessPendingExports drains the pending queue. Each job is claimed
// with a skip-locked update, so concurrent workers never process the
// same job twice. Returns the number of jobs handled.
func (s *ExportService) ProcessPendingExports(ctx context.Context) (int, error) {
	const op = "export.process"

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, domain.WrapError(op, err)
		}

		export, err := s.repo.ClaimNextPendingExport(ctx)
		if err != nil {
			return processed, domain.WrapError(op, err)
		}
		if export == nil {
			return processed, nil
		}

		s.processOne(ctx, export)
		processed++
	}
}

func (s *ExportService) processOne(ctx context.Context, export *domain.InvoiceExport) {
	started := s.now()

	total, err := s.renderAndStore(ctx, export)
	if err != nil {
		s.logger.Error().Err(err).
			Str("export_id", export.ID.String()).
			Msg("export failed")
		if failErr := s.repo.FailExport(ctx, export.ID, err.Error()); failErr != nil {
			s.logger.Error().Err(failErr).
				Str("export_id", export.ID.String()).
				Msg("export failure not recorded")
		}
		if telemetry.Business != nil {
			telemetry.Business.ExportsFailed.WithLabelValues(string(export.Format)).Inc()
		}
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.ExportsCompleted.WithLabelValues(string(export.Format)).Inc()
		telemetry.Business.ExportDuration.WithLabelValues(string(export.Format)).Observe(s.now().Sub(started).Seconds())
	}
	s.logger.Info().
		Str("export_id", export.ID.String()).
		Int("records", total).
		Dur("took", s.now().Sub(started)).
		Msg("export completed")
}

func (s *ExportService) renderAndStore(ctx context.Context, export *domain.InvoiceExport) (int, error) {
	renderer, err := render.ForFormat(export.Format)
	if err != nil {
		return 0, err
	}

	invoices, err := s.collectInvoices(ctx, export.Filter)
	if err != nil {
		return 0, fmt.Errorf("collect invoices: %w", err)
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, invoices); err != nil {
		return 0, fmt.Errorf("render %s: %w", export.Format, err)
	}

	url, err := s.storage.Put(ctx, exportKey(export), &buf, renderer.ContentType())
	if err != nil {
		return 0, fmt.Errorf("store artifact: %w", err)
	}

	// Completion and the per-invoice audit entries commit together.
	now := s.now()
	err = s.repo.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.CompleteExport(ctx, export.ID, url, len(invoices)); err != nil {
			return err
		}
		for i := range invoices {
			inv := &invoices[i]
			if err := q.CreateAuditEntry(ctx, &domain.AuditEntry{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				Action:      domain.AuditActionExported,
				Description: fmt.Sprintf("Invoice %s included in %s export %s", inv.InvoiceNumber, export.Format, export.ID),
				PerformedBy: export.RequestedBy,
				PerformedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("complete export: %w", err)
	}
	return len(invoices), nil
}

// collectInvoices pages through every invoice matching the filter. The
// stored filter's own limit and offset are ignored; exports cover the
// full match.
func (s *ExportService) collectInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var all []domain.Invoice
	filter.Limit = exportPageSize
	filter.Offset = 0

	for {
		page, err := s.repo.ListInvoices(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
		filter.Offset += exportPageSize
	}
}

func exportKey(export *domain.InvoiceExport) string {
	return fmt.Sprintf("exports/%s.%s", export.ID, export.Format)
}
