package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ExportFormat is the output format of an invoice export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatJSON ExportFormat = "json"
)

// IsValid reports whether f is a known export format.
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatJSON:
		return true
	}
	return false
}

// ExportStatus tracks an export job through its life.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// InvoiceExport is an asynchronous export job over filtered invoices.
type InvoiceExport struct {
	ID               uuid.UUID     `json:"id"`
	Status           ExportStatus  `json:"status"`
	Format           ExportFormat  `json:"format"`
	Filter           InvoiceFilter `json:"filter"`
	TotalRecords     int           `json:"total_records"`
	ProcessedRecords int           `json:"processed_records"`
	DownloadURL      string        `json:"download_url,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	RequestedBy      uuid.UUID     `json:"requested_by"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	ExpiresAt        time.Time     `json:"expires_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsExpired reports whether the export artifact is past its retention.
func (e *InvoiceExport) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Export domain errors.
var (
	ErrExportNotFound = &Error{Code: ENOTFOUND, Message: "Export not found"}
	ErrExportNotReady = &Error{Code: ECONFLICT, Message: "Export is not completed"}
	ErrExportExpired  = &Error{Code: ENOTFOUND, Message: "Export has expired"}
	ErrInvalidFormat  = &Error{Code: EINVALID, Message: "Unknown export format"}
)

// ExportService manages asynchronous invoice exports.
type ExportService interface {
	// InitiateExport creates a pending export job and returns immediately.
	// The worker picks it up, renders the artifact, and stores it.
	InitiateExport(ctx context.Context, params InitiateExportParams) (*InvoiceExport, error)

	// GetExport returns the current state of an export job.
	GetExport(ctx context.Context, exportID uuid.UUID) (*InvoiceExport, error)

	// DownloadExport streams a completed, unexpired export artifact.
	// The caller must close the reader.
	DownloadExport(ctx context.Context, exportID uuid.UUID) (io.ReadCloser, *InvoiceExport, error)

	// ProcessPendingExports claims pending jobs, renders and stores their
	// artifacts, and marks them completed or failed. Called by the worker.
	ProcessPendingExports(ctx context.Context) (int, error)
}

// InitiateExportParams contains parameters for starting an export.
type InitiateExportParams struct {
	Format      ExportFormat
	Filter      InvoiceFilter
	RequestedBy uuid.UUID
}
