package render

import (
	"io"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/haldorsen/norn/internal/domain"
)

// PDFRenderer writes a tabular statement, one invoice per row, with a
// detail block per invoice.
type PDFRenderer struct{}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }
func (r *PDFRenderer) Extension() string   { return "pdf" }

func (r *PDFRenderer) Render(w io.Writer, invoices []domain.Invoice) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Invoice Export")
	pdf.Ln(12)

	headers := []string{"Number", "Status", "Billed To", "Issued", "Due", "Total", "Paid", "Balance"}
	widths := []float64{35, 28, 60, 25, 25, 30, 30, 30}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i := range invoices {
		inv := &invoices[i]
		cells := []string{
			inv.InvoiceNumber,
			string(inv.Status),
			inv.BillTo.Name,
			inv.IssueDate.Format(time.DateOnly),
			inv.DueDate.Format(time.DateOnly),
			inv.Currency + " " + formatCents(inv.TotalCents),
			formatCents(inv.PaidCents),
			formatCents(inv.BalanceCents),
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 7, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}
