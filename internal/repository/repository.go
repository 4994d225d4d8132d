package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haldorsen/norn/internal/domain"
)

// DBTX is the subset of pgx satisfied by both a pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the full set of queries the services depend on. The pgx
// implementation is *Queries; tests substitute an in-memory fake.
type Querier interface {
	// Invoices
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	CountInvoices(ctx context.Context, filter domain.InvoiceFilter) (int64, error)
	ListOverdueCandidateIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	ListOverdueInvoices(ctx context.Context) ([]domain.Invoice, error)

	// Payments
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
	ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	CountPayments(ctx context.Context, filter domain.PaymentFilter) (int64, error)

	// Templates
	CreateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.InvoiceTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.InvoiceTemplate, error)
	UpdateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// Recurring schedules
	CreateRecurring(ctx context.Context, r *domain.RecurringInvoice) error
	GetRecurring(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error)
	GetRecurringForUpdate(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error)
	ListRecurring(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.RecurringInvoice, error)
	ListDueRecurring(ctx context.Context, asOf time.Time) ([]domain.RecurringInvoice, error)
	UpdateRecurring(ctx context.Context, r *domain.RecurringInvoice) error

	// Reminders
	CreateReminder(ctx context.Context, r *domain.Reminder) error
	ListReminders(ctx context.Context, invoiceID uuid.UUID) ([]domain.Reminder, error)

	// Audit trail
	CreateAuditEntry(ctx context.Context, e *domain.AuditEntry) error
	ListAuditTrail(ctx context.Context, invoiceID uuid.UUID, limit, offset int32) ([]domain.AuditEntry, error)

	// Exports
	CreateExport(ctx context.Context, e *domain.InvoiceExport) error
	GetExport(ctx context.Context, id uuid.UUID) (*domain.InvoiceExport, error)
	ClaimNextPendingExport(ctx context.Context) (*domain.InvoiceExport, error)
	CompleteExport(ctx context.Context, id uuid.UUID, downloadURL string, totalRecords int) error
	FailExport(ctx context.Context, id uuid.UUID, errMsg string) error

	// Settings
	GetSettings(ctx context.Context) (*domain.InvoiceSettings, error)
	CreateSettings(ctx context.Context, s *domain.InvoiceSettings) error
	UpdateSettings(ctx context.Context, s *domain.InvoiceSettings) error
	IncrementInvoiceNumber(ctx context.Context) (prefix string, number int64, err error)

	// Analytics
	GetInvoiceSummaryStats(ctx context.Context) (*domain.InvoiceSummaryStats, error)
	GetAgingReport(ctx context.Context, asOf time.Time) ([]domain.AgingBucket, error)
	GetRevenueTrends(ctx context.Context, from, to time.Time) ([]domain.RevenuePoint, error)
}

// Repository is what services hold: all queries plus transactional
// execution. ExecTx runs fn against a transaction-bound Querier and
// commits only when fn returns nil.
type Repository interface {
	Querier
	ExecTx(ctx context.Context, fn func(q Querier) error) error
}

// Queries runs SQL against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection source.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Store is the pool-backed Repository used in production.
type Store struct {
	pool *pgxpool.Pool
	*Queries
}

// NewStore creates a Store over a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		Queries: New(pool),
	}
}

// ExecTx executes fn within a database transaction. The transaction is
// rolled back when fn returns an error.
func (s *Store) ExecTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// toJSON marshals v for a jsonb column. Nil input produces a SQL NULL.
func toJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

// fromJSON unmarshals a jsonb column into v, treating NULL as absent.
func fromJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

// isNoRows reports whether err is pgx's empty-result sentinel.
func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
