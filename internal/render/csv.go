package render

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/haldorsen/norn/internal/domain"
)

// CSVRenderer writes one row per invoice.
type CSVRenderer struct{}

func (r *CSVRenderer) ContentType() string { return "text/csv" }
func (r *CSVRenderer) Extension() string   { return "csv" }

func (r *CSVRenderer) Render(w io.Writer, invoices []domain.Invoice) error {
	cw := csv.NewWriter(w)

	header := []string{
		"invoice_number", "type", "status", "payment_status",
		"bill_to_name", "bill_to_email", "issue_date", "due_date",
		"currency", "subtotal", "discount", "tax", "shipping",
		"total", "paid", "balance",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range invoices {
		inv := &invoices[i]
		row := []string{
			inv.InvoiceNumber,
			string(inv.Type),
			string(inv.Status),
			string(inv.PaymentStatus),
			inv.BillTo.Name,
			inv.BillTo.Email,
			inv.IssueDate.Format(time.DateOnly),
			inv.DueDate.Format(time.DateOnly),
			inv.Currency,
			formatCents(inv.SubtotalCents),
			formatCents(inv.DiscountCents),
			formatCents(inv.TaxCents),
			formatCents(inv.ShippingCents),
			formatCents(inv.TotalCents),
			formatCents(inv.PaidCents),
			formatCents(inv.BalanceCents),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
