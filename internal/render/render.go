// Package render turns invoice sets into export artifacts.
package render

import (
	"fmt"
	"io"

	"github.com/haldorsen/norn/internal/domain"
)

// Renderer writes a set of invoices to w in one export format.
type Renderer interface {
	Render(w io.Writer, invoices []domain.Invoice) error
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for an export format.
func ForFormat(format domain.ExportFormat) (Renderer, error) {
	switch format {
	case domain.ExportFormatCSV:
		return &CSVRenderer{}, nil
	case domain.ExportFormatPDF:
		return &PDFRenderer{}, nil
	case domain.ExportFormatJSON:
		return &JSONRenderer{}, nil
	default:
		return nil, domain.ErrInvalidFormat
	}
}

// formatCents renders minor units as a decimal string, e.g. 123450 -> "1234.50".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
