package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BulkOperation identifies the action a bulk request applies to each invoice.
type BulkOperation string

const (
	BulkOpSend         BulkOperation = "send"
	BulkOpSubmit       BulkOperation = "submit"
	BulkOpApprove      BulkOperation = "approve"
	BulkOpReject       BulkOperation = "reject"
	BulkOpCancel       BulkOperation = "cancel"
	BulkOpDelete       BulkOperation = "delete"
	BulkOpMarkPaid     BulkOperation = "mark_paid"
	BulkOpMarkOverdue  BulkOperation = "mark_overdue"
	BulkOpExport       BulkOperation = "export"
	BulkOpSendReminder BulkOperation = "send_reminder"
)

// IsValid reports whether op is a known bulk operation.
func (op BulkOperation) IsValid() bool {
	switch op {
	case BulkOpSend, BulkOpSubmit, BulkOpApprove, BulkOpReject, BulkOpCancel,
		BulkOpDelete, BulkOpMarkPaid, BulkOpMarkOverdue, BulkOpExport,
		BulkOpSendReminder:
		return true
	}
	return false
}

// Bulk domain errors.
var (
	ErrBulkNoInvoices       = &Error{Code: EINVALID, Message: "At least one invoice ID is required"}
	ErrUnknownBulkOperation = &Error{Code: EINVALID, Message: "Unknown bulk operation"}
)

// BulkRequest applies one operation to a set of invoices.
type BulkRequest struct {
	Operation  BulkOperation `json:"operation"`
	InvoiceIDs []uuid.UUID   `json:"invoice_ids"`
	Reason     string        `json:"reason,omitempty"`  // reject/cancel
	Format     ExportFormat  `json:"format,omitempty"`  // export
	Message    string        `json:"message,omitempty"` // send_reminder
	ActorID    uuid.UUID     `json:"-"`
}

// BulkItemResult is the outcome for a single invoice in a bulk request.
type BulkItemResult struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// BulkResult summarizes a bulk request. One item failing never aborts
// the remaining items.
type BulkResult struct {
	TotalProcessed int              `json:"total_processed"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Details        []BulkItemResult `json:"details"`
	ExportID       *uuid.UUID       `json:"export_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// BulkService executes failure-partitioned bulk operations.
type BulkService interface {
	Execute(ctx context.Context, req BulkRequest) (*BulkResult, error)
}
