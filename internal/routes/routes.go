// Package routes wires the admin API onto the echo server.
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/handler/admin"
	"github.com/haldorsen/norn/internal/middleware"
)

// Register attaches all routes and middleware to e. The admin API lives
// under /admin/api/v1 and requires an actor identity; /health and
// /metrics are open at the root.
func Register(e *echo.Echo, h *admin.Handler, logger zerolog.Logger) {
	e.Validator = admin.NewValidator()
	e.HTTPErrorHandler = admin.ErrorHandler(logger)

	httpMetrics := middleware.NewHTTPMetrics("norn")
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		httpMetrics.Middleware(),
	)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/admin/api/v1", middleware.RequireActor())

	// Invoices
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices", h.ListInvoices)
	api.POST("/invoices/bulk", h.ExecuteBulk)
	api.GET("/invoices/number/:number", h.GetInvoiceByNumber)
	api.GET("/invoices/:id", h.GetInvoice)
	api.PATCH("/invoices/:id", h.UpdateInvoice)
	api.DELETE("/invoices/:id", h.DeleteInvoice)

	// Lifecycle transitions
	api.POST("/invoices/:id/send", h.SendInvoice)
	api.POST("/invoices/:id/submit", h.SubmitInvoice)
	api.POST("/invoices/:id/approve", h.ApproveInvoice)
	api.POST("/invoices/:id/reject", h.RejectInvoice)
	api.POST("/invoices/:id/cancel", h.CancelInvoice)
	api.POST("/invoices/:id/void", h.VoidInvoice)
	api.POST("/invoices/:id/mark-viewed", h.MarkInvoiceViewed)
	api.POST("/invoices/:id/mark-overdue", h.MarkInvoiceOverdue)
	api.POST("/invoices/:id/mark-paid", h.MarkInvoicePaid)

	// Payments
	api.POST("/invoices/:id/payments", h.RecordPayment)
	api.GET("/invoices/:id/payments", h.ListInvoicePayments)
	api.GET("/payments", h.ListPayments)
	api.POST("/payments/:id/refund", h.RefundPayment)

	// Audit trail
	api.GET("/invoices/:id/audit", h.ListAuditTrail)

	// Reminders
	api.POST("/invoices/:id/reminders", h.SendReminder)
	api.GET("/invoices/:id/reminders", h.ListReminders)
	api.POST("/reminders/overdue", h.SendOverdueReminders)

	// Templates
	api.POST("/templates", h.CreateTemplate)
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/:id", h.GetTemplate)
	api.PATCH("/templates/:id", h.UpdateTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)

	// Recurring schedules
	api.POST("/recurring", h.CreateRecurring)
	api.GET("/recurring", h.ListRecurring)
	api.POST("/recurring/generate", h.GenerateRecurring)
	api.GET("/recurring/:id", h.GetRecurring)
	api.POST("/recurring/:id/activate", h.ActivateRecurring)
	api.POST("/recurring/:id/deactivate", h.DeactivateRecurring)

	// Exports
	api.POST("/exports", h.InitiateExport)
	api.GET("/exports/:id", h.GetExport)
	api.GET("/exports/:id/download", h.DownloadExport)

	// Settings
	api.GET("/settings", h.GetSettings)
	api.PATCH("/settings", h.UpdateSettings)

	// Analytics
	api.GET("/analytics/summary", h.AnalyticsSummary)
	api.GET("/analytics/aging", h.AnalyticsAging)
	api.GET("/analytics/revenue", h.AnalyticsRevenue)
}
