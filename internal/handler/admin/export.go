package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haldorsen/norn/internal/domain"
)

type initiateExportRequest struct {
	Format domain.ExportFormat  `json:"format" validate:"required"`
	Filter domain.InvoiceFilter `json:"filter"`
}

// InitiateExport handles POST /exports.
func (h *Handler) InitiateExport(c echo.Context) error {
	var req initiateExportRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	export, err := h.exports.InitiateExport(c.Request().Context(), domain.InitiateExportParams{
		Format:      req.Format,
		Filter:      req.Filter,
		RequestedBy: actor(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, export)
}

// GetExport handles GET /exports/:id.
func (h *Handler) GetExport(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	export, err := h.exports.GetExport(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, export)
}

// DownloadExport handles GET /exports/:id/download, streaming the
// artifact of a completed, unexpired export.
func (h *Handler) DownloadExport(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	rc, export, err := h.exports.DownloadExport(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	filename := "invoices-" + export.ID.String() + "." + string(export.Format)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Stream(http.StatusOK, contentTypeFor(export.Format), rc)
}

func contentTypeFor(format domain.ExportFormat) string {
	switch format {
	case domain.ExportFormatCSV:
		return "text/csv"
	case domain.ExportFormatJSON:
		return echo.MIMEApplicationJSON
	case domain.ExportFormatPDF:
		return "application/pdf"
	default:
		return echo.MIMEOctetStream
	}
}
