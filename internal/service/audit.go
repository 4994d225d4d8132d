package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/repository"
)

// AuditService implements domain.AuditService. The trail is read-only
// here; entries are appended inside the mutating services' transactions.
type AuditService struct {
	repo   repository.Repository
	logger zerolog.Logger
}

// NewAuditService creates the audit trail reader.
func NewAuditService(repo repository.Repository, logger zerolog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger.With().Str("service", "audit").Logger(),
	}
}

// ListAuditTrail returns an invoice's audit trail, newest first.
func (s *AuditService) ListAuditTrail(ctx context.Context, invoiceID uuid.UUID, limit, offset int32) ([]domain.AuditEntry, error) {
	const op = "audit.list"

	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, domain.WrapError(op, err)
	}
	entries, err := s.repo.ListAuditTrail(ctx, invoiceID, limit, offset)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return entries, nil
}
