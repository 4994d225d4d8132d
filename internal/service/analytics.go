package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/cache"
	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/repository"
)

const (
	summaryCacheKey = "analytics:summary"
	summaryCacheTTL = 60 * time.Second
)

// AnalyticsService implements domain.AnalyticsService. The summary is
// cached briefly since it aggregates over the whole invoices table and
// dashboards poll it.
type AnalyticsService struct {
	repo   repository.Repository
	cache  cache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewAnalyticsService creates the analytics service.
func NewAnalyticsService(repo repository.Repository, c cache.Cache, logger zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:   repo,
		cache:  c,
		logger: logger.With().Str("service", "analytics").Logger(),
		now:    time.Now,
	}
}

// Summary returns portfolio-level figures, served from cache when fresh.
func (s *AnalyticsService) Summary(ctx context.Context) (*domain.InvoiceSummaryStats, error) {
	const op = "analytics.summary"

	if s.cache != nil {
		var cached domain.InvoiceSummaryStats
		hit, err := s.cache.Get(ctx, summaryCacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Msg("summary cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	stats, err := s.repo.GetInvoiceSummaryStats(ctx)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey, stats, summaryCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("summary cache write failed")
		}
	}
	return stats, nil
}

// AgingReport buckets outstanding balances by days overdue as of now.
func (s *AnalyticsService) AgingReport(ctx context.Context) ([]domain.AgingBucket, error) {
	buckets, err := s.repo.GetAgingReport(ctx, s.now())
	if err != nil {
		return nil, domain.WrapError("analytics.aging", err)
	}
	return buckets, nil
}

// RevenueTrends returns per-day collected revenue between from and to.
func (s *AnalyticsService) RevenueTrends(ctx context.Context, from, to time.Time) ([]domain.RevenuePoint, error) {
	const op = "analytics.revenue_trends"

	if to.Before(from) {
		return nil, domain.WrapError(op, domain.Invalid("End date cannot precede the start date"))
	}
	if to.Sub(from) > 366*24*time.Hour {
		return nil, domain.WrapError(op, domain.Invalid("Date range cannot exceed one year"))
	}

	points, err := s.repo.GetRevenueTrends(ctx, from, to)
	if err != nil {
		return nil, domain.WrapError(op, err)
	}
	return points, nil
}

// InvalidateSummary drops the cached summary. The bulk executor calls
// this after a sweep that changed invoices, so dashboards see the new
// figures before the TTL runs out.
func (s *AnalyticsService) InvalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryCacheKey); err != nil {
		s.logger.Warn().Err(err).Str("key", summaryCacheKey).Msg("cache delete failed")
	}
}
