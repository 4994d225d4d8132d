package admin

import (
	"time"

	"github.com/labstack/echo/v4"
)

// AnalyticsSummary handles GET /analytics/summary.
func (h *Handler) AnalyticsSummary(c echo.Context) error {
	summary, err := h.analytics.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, summary)
}

// AnalyticsAging handles GET /analytics/aging.
func (h *Handler) AnalyticsAging(c echo.Context) error {
	buckets, err := h.analytics.AgingReport(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, buckets)
}

// AnalyticsRevenue handles GET /analytics/revenue. Defaults to the
// trailing 30 days when no range is supplied.
func (h *Handler) AnalyticsRevenue(c echo.Context) error {
	fromPtr, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	toPtr, err := queryTime(c, "to")
	if err != nil {
		return err
	}

	to := time.Now()
	if toPtr != nil {
		to = *toPtr
	}
	from := to.AddDate(0, 0, -30)
	if fromPtr != nil {
		from = *fromPtr
	}

	points, err := h.analytics.RevenueTrends(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return ok(c, points)
}
