package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/repository"
)

// TemplateService implements domain.TemplateService.
type TemplateService struct {
	repo   repository.Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewTemplateService creates the template service.
func NewTemplateService(repo repository.Repository, logger zerolog.Logger) *TemplateService {
	return &TemplateService{
		repo:   repo,
		logger: logger.With().Str("service", "template").Logger(),
		now:    time.Now,
	}
}

func validateTemplateData(data domain.TemplateData) error {
	if len(data.Items) == 0 {
		return domain.ErrTemplateNoItems
	}
	return validateItems(data.Items)
}

// CreateTemplate creates an active template.
func (s *TemplateService) CreateTemplate(ctx context.Context, params domain.CreateTemplateParams) (*domain.InvoiceTemplate, error) {
	const op = "template.create"

	if params.Name == "" {
		return nil, domain.WrapError(op, domain.Invalid("Template name is required"))
	}
	if params.Type != "" && !params.Type.IsValid() {
		return nil, domain.WrapError(op, domain.Invalid("Unknown invoice type: %s", params.Type))
	}
	if err := validateTemplateData(params.TemplateData); err != nil {
		return nil, domain.WrapError(op, err)
	}

	invType := params.Type
	if invType == "" {
		invType = domain.InvoiceTypeStandard
	}

	now := s.now()
	tmpl := &domain.InvoiceTemplate{
		ID:           uuid.New(),
		Name:         params.Name,
		Description:  params.Description,
		Type:         invType,
		TemplateData: params.TemplateData,
		DefaultTerms: params.DefaultTerms,
		DefaultNotes: params.DefaultNotes,
		IsActive:     true,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateTemplate(ctx, tmpl); err != nil {
		return nil, domain.WrapError(op, err)
	}

	s.logger.Info().
		Str("template_id", tmpl.ID.String()).
		Str("name", tmpl.Name).
		Msg("template created")
	return tmpl, nil
}

// GetTemplate retrieves a template by ID.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*domain.InvoiceTemplate, error) {
	tmpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, domain.WrapError("template.get", err)
	}
	return tmpl, nil
}

// ListTemplates lists templates, newest first.
func (s *TemplateService) ListTemplates(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.InvoiceTemplate, error) {
	templates, err := s.repo.ListTemplates(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, domain.WrapError("template.list", err)
	}
	return templates, nil
}

// UpdateTemplate applies partial updates to a template.
func (s *TemplateService) UpdateTemplate(ctx context.Context, templateID uuid.UUID, params domain.UpdateTemplateParams) (*domain.InvoiceTemplate, error) {
	const op = "template.update"

	if params.TemplateData != nil {
		if err := validateTemplateData(*params.TemplateData); err != nil {
			return nil, domain.WrapError(op, err)
		}
	}
	if params.Name != nil && *params.Name == "" {
		return nil, domain.WrapError(op, domain.Invalid("Template name cannot be empty"))
	}

	tmpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	if params.Name != nil {
		tmpl.Name = *params.Name
	}
	if params.Description != nil {
		tmpl.Description = *params.Description
	}
	if params.TemplateData != nil {
		tmpl.TemplateData = *params.TemplateData
	}
	if params.DefaultTerms != nil {
		tmpl.DefaultTerms = *params.DefaultTerms
	}
	if params.DefaultNotes != nil {
		tmpl.DefaultNotes = *params.DefaultNotes
	}
	if params.IsActive != nil {
		tmpl.IsActive = *params.IsActive
	}
	tmpl.UpdatedBy = &params.UpdatedBy

	if err := s.repo.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, domain.WrapError(op, err)
	}
	return tmpl, nil
}

// DeleteTemplate removes a template. Schedules referencing it keep their
// foreign key, so deletion fails while any schedule exists.
func (s *TemplateService) DeleteTemplate(ctx context.Context, templateID uuid.UUID) error {
	if err := s.repo.DeleteTemplate(ctx, templateID); err != nil {
		return domain.WrapError("template.delete", err)
	}
	s.logger.Info().Str("template_id", templateID.String()).Msg("template deleted")
	return nil
}
