package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"quotationdesk/services"
)

// HandleQuotationQR returns a handler that serves the QR code pointing at a
// quotation's public view. ?size= sets the edge in pixels (50-300, default
// 120); ?format=dataurl answers with JSON instead of a PNG.
func HandleQuotationQR(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := e.Request.PathValue("id")
		if id == "" {
			return e.String(http.StatusBadRequest, "Missing quotation ID")
		}

		q := e.Request.URL.Query()
		size := services.DefaultSettings().QRSize
		if v := q.Get("size"); v != "" {
			// Out-of-range sizes fall back to the default like any other setting.
			size = services.ResolveSettings(map[string]any{"qrSize": v}).Settings.QRSize
		}

		png, err := services.GenerateQRPNG(id, d.BaseURL, services.DefaultQROptions(size))
		if err != nil {
			log.Printf("qr: %s: %v", id, err)
			return e.String(http.StatusInternalServerError, "Failed to generate QR code")
		}

		if q.Get("format") == "dataurl" {
			return e.JSON(http.StatusOK, map[string]any{
				"quotationId": id,
				"url":         services.QuotationViewURL(d.BaseURL, id),
				"dataUrl":     services.PNGDataURL(png),
				"size":        size,
			})
		}
		e.Response.Header().Set("Cache-Control", "public, max-age=3600")
		return e.Blob(http.StatusOK, "image/png", png)
	}
}

// HandleQuotationView returns a handler that renders the public HTML page of
// a quotation. This is the page QR codes point at.
func HandleQuotationView(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := e.Request.PathValue("id")
		html, err := d.Exporter.ViewDocument(e.Request.Context(), id)
		if errors.Is(err, services.ErrNotFound) {
			return e.String(http.StatusNotFound, "Quotation not found")
		}
		if err != nil {
			log.Printf("quotation_view: %s: %v", id, err)
			return e.String(http.StatusInternalServerError, "Failed to render quotation")
		}
		return e.HTML(http.StatusOK, html)
	}
}
