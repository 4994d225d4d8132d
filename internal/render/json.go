package render

import (
	"encoding/json"
	"io"

	"github.com/haldorsen/norn/internal/domain"
)

// JSONRenderer writes the invoices as a JSON array.
type JSONRenderer struct{}

func (r *JSONRenderer) ContentType() string { return "application/json" }
func (r *JSONRenderer) Extension() string   { return "json" }

func (r *JSONRenderer) Render(w io.Writer, invoices []domain.Invoice) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(invoices)
}
