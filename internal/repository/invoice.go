package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/haldorsen/norn/internal/domain"
)

const invoiceColumns = `id, invoice_number, type, status, payment_status,
	customer_id, partner_id, booking_id, bill_to, ship_to, items,
	issue_date, due_date, currency,
	subtotal_cents, discount_cents, tax_cents, shipping_cents,
	total_cents, paid_cents, balance_cents,
	notes, terms, custom_fields, taxes, discount_percentage, pdf_url,
	sent_at, viewed_at, paid_at, approved_at, rejected_at, cancelled_at, voided_at,
	rejection_reason, cancellation_reason, void_reason,
	created_by, updated_by, approved_by, rejected_by, cancelled_by, voided_by,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var billTo, shipTo, items, customFields, taxes []byte

	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.Type, &inv.Status, &inv.PaymentStatus,
		&inv.CustomerID, &inv.PartnerID, &inv.BookingID, &billTo, &shipTo, &items,
		&inv.IssueDate, &inv.DueDate, &inv.Currency,
		&inv.SubtotalCents, &inv.DiscountCents, &inv.TaxCents, &inv.ShippingCents,
		&inv.TotalCents, &inv.PaidCents, &inv.BalanceCents,
		&inv.Notes, &inv.Terms, &customFields, &taxes, &inv.DiscountPercentage, &inv.PdfURL,
		&inv.SentAt, &inv.ViewedAt, &inv.PaidAt, &inv.ApprovedAt, &inv.RejectedAt, &inv.CancelledAt, &inv.VoidedAt,
		&inv.RejectionReason, &inv.CancellationReason, &inv.VoidReason,
		&inv.CreatedBy, &inv.UpdatedBy, &inv.ApprovedBy, &inv.RejectedBy, &inv.CancelledBy, &inv.VoidedBy,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(billTo, &inv.BillTo); err != nil {
		return nil, err
	}
	if len(shipTo) > 0 {
		inv.ShipTo = &domain.Contact{}
		if err := fromJSON(shipTo, inv.ShipTo); err != nil {
			return nil, err
		}
	}
	if err := fromJSON(items, &inv.Items); err != nil {
		return nil, err
	}
	if err := fromJSON(customFields, &inv.CustomFields); err != nil {
		return nil, err
	}
	if err := fromJSON(taxes, &inv.Taxes); err != nil {
		return nil, err
	}
	return &inv, nil
}

func invoiceJSONValues(inv *domain.Invoice) (billTo, shipTo, items, customFields, taxes []byte, err error) {
	if billTo, err = toJSON(inv.BillTo); err != nil {
		return
	}
	if inv.ShipTo != nil {
		if shipTo, err = toJSON(inv.ShipTo); err != nil {
			return
		}
	}
	if items, err = toJSON(inv.Items); err != nil {
		return
	}
	if inv.CustomFields != nil {
		if customFields, err = toJSON(inv.CustomFields); err != nil {
			return
		}
	}
	if inv.Taxes != nil {
		if taxes, err = toJSON(inv.Taxes); err != nil {
			return
		}
	}
	return
}

// CreateInvoice inserts a fully populated invoice row.
func (q *Queries) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	billTo, shipTo, items, customFields, taxes, err := invoiceJSONValues(inv)
	if err != nil {
		return err
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO invoices (
			id, invoice_number, type, status, payment_status,
			customer_id, partner_id, booking_id, bill_to, ship_to, items,
			issue_date, due_date, currency,
			subtotal_cents, discount_cents, tax_cents, shipping_cents,
			total_cents, paid_cents, balance_cents,
			notes, terms, custom_fields, taxes, discount_percentage, pdf_url,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29, $30
		)`,
		inv.ID, inv.InvoiceNumber, inv.Type, inv.Status, inv.PaymentStatus,
		inv.CustomerID, inv.PartnerID, inv.BookingID, billTo, shipTo, items,
		inv.IssueDate, inv.DueDate, inv.Currency,
		inv.SubtotalCents, inv.DiscountCents, inv.TaxCents, inv.ShippingCents,
		inv.TotalCents, inv.PaidCents, inv.BalanceCents,
		inv.Notes, inv.Terms, customFields, taxes, inv.DiscountPercentage, inv.PdfURL,
		inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "invoices_invoice_number_key") {
		return domain.ErrDuplicateInvoiceNumber
	}
	return err
}

// GetInvoice retrieves an invoice by ID.
func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if isNoRows(err) {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, err
}

// GetInvoiceForUpdate retrieves an invoice by ID with a row lock. Must be
// called within a transaction; the lock serializes concurrent mutations.
func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if isNoRows(err) {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, err
}

// GetInvoiceByNumber retrieves an invoice by its unique number.
func (q *Queries) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
	inv, err := scanInvoice(row)
	if isNoRows(err) {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, err
}

// UpdateInvoice writes back every mutable column of an invoice row.
func (q *Queries) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	billTo, shipTo, items, customFields, taxes, err := invoiceJSONValues(inv)
	if err != nil {
		return err
	}

	tag, err := q.db.Exec(ctx, `
		UPDATE invoices SET
			type = $2, status = $3, payment_status = $4,
			customer_id = $5, partner_id = $6, booking_id = $7,
			bill_to = $8, ship_to = $9, items = $10,
			issue_date = $11, due_date = $12, currency = $13,
			subtotal_cents = $14, discount_cents = $15, tax_cents = $16,
			shipping_cents = $17, total_cents = $18, paid_cents = $19,
			balance_cents = $20,
			notes = $21, terms = $22, custom_fields = $23, taxes = $24,
			discount_percentage = $25, pdf_url = $26,
			sent_at = $27, viewed_at = $28, paid_at = $29, approved_at = $30,
			rejected_at = $31, cancelled_at = $32, voided_at = $33,
			rejection_reason = $34, cancellation_reason = $35, void_reason = $36,
			updated_by = $37, approved_by = $38, rejected_by = $39,
			cancelled_by = $40, voided_by = $41,
			updated_at = now()
		WHERE id = $1`,
		inv.ID,
		inv.Type, inv.Status, inv.PaymentStatus,
		inv.CustomerID, inv.PartnerID, inv.BookingID,
		billTo, shipTo, items,
		inv.IssueDate, inv.DueDate, inv.Currency,
		inv.SubtotalCents, inv.DiscountCents, inv.TaxCents,
		inv.ShippingCents, inv.TotalCents, inv.PaidCents,
		inv.BalanceCents,
		inv.Notes, inv.Terms, customFields, taxes,
		inv.DiscountPercentage, inv.PdfURL,
		inv.SentAt, inv.ViewedAt, inv.PaidAt, inv.ApprovedAt,
		inv.RejectedAt, inv.CancelledAt, inv.VoidedAt,
		inv.RejectionReason, inv.CancellationReason, inv.VoidReason,
		inv.UpdatedBy, inv.ApprovedBy, inv.RejectedBy,
		inv.CancelledBy, inv.VoidedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// DeleteInvoice removes an invoice row. Payments and reminders cascade;
// audit entries have no foreign key and survive the deletion.
func (q *Queries) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// invoiceSortColumns whitelists sortable columns for ListInvoices.
var invoiceSortColumns = map[string]string{
	"created_at":     "created_at",
	"issue_date":     "issue_date",
	"due_date":       "due_date",
	"total_cents":    "total_cents",
	"invoice_number": "invoice_number",
	"status":         "status",
}

func buildInvoiceWhere(filter domain.InvoiceFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("id = ANY($%d)", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		ss := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			ss[i] = string(s)
		}
		add("status = ANY($%d)", ss)
	}
	if len(filter.Types) > 0 {
		ts := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			ts[i] = string(t)
		}
		add("type = ANY($%d)", ts)
	}
	if filter.PaymentStatus != nil {
		add("payment_status = $%d", *filter.PaymentStatus)
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.PartnerID != nil {
		add("partner_id = $%d", *filter.PartnerID)
	}
	if filter.BookingID != nil {
		add("booking_id = $%d", *filter.BookingID)
	}
	if filter.IssuedFrom != nil {
		add("issue_date >= $%d", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		add("issue_date <= $%d", *filter.IssuedTo)
	}
	if filter.MinTotalCents != nil {
		add("total_cents >= $%d", *filter.MinTotalCents)
	}
	if filter.MaxTotalCents != nil {
		add("total_cents <= $%d", *filter.MaxTotalCents)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(invoice_number ILIKE $%d OR bill_to->>'name' ILIKE $%d)", n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListInvoices returns invoices matching the filter, paged and sorted.
func (q *Queries) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	where, args := buildInvoiceWhere(filter)

	sortCol, ok := invoiceSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if filter.SortDesc || filter.SortBy == "" {
		dir = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := len(args)
	args = append(args, filter.Offset)
	offsetArg := len(args)

	sql := fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, sortCol, dir, limitArg, offsetArg)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// CountInvoices returns the number of invoices matching the filter,
// ignoring pagination.
func (q *Queries) CountInvoices(ctx context.Context, filter domain.InvoiceFilter) (int64, error) {
	where, args := buildInvoiceWhere(filter)
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM invoices`+where, args...).Scan(&count)
	return count, err
}

// ListOverdueCandidateIDs returns IDs of invoices past due with an
// outstanding balance, in a status eligible for the overdue transition.
func (q *Queries) ListOverdueCandidateIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id FROM invoices
		WHERE due_date < $1
		  AND balance_cents > 0
		  AND status = ANY($2)
		ORDER BY due_date`,
		asOf,
		[]string{
			string(domain.InvoiceStatusPending),
			string(domain.InvoiceStatusSent),
			string(domain.InvoiceStatusViewed),
			string(domain.InvoiceStatusApproved),
			string(domain.InvoiceStatusPartiallyPaid),
		},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOverdueInvoices returns invoices currently in overdue status with a
// balance outstanding, oldest due first.
func (q *Queries) ListOverdueInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status = $1 AND balance_cents > 0
		 ORDER BY due_date`,
		domain.InvoiceStatusOverdue,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
