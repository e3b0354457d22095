package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pocketbase/pocketbase/core"

	"quotationdesk/services"
)

// retryAfterSeconds is sent with 504 responses.
const retryAfterSeconds = 5

// maxSettingsBody bounds JSON request bodies.
const maxSettingsBody = 1 << 20

// ExportDeps holds what the export handlers share.
type ExportDeps struct {
	Exporter  *services.Exporter
	Batch     *services.BatchExporter
	Templates *services.TemplateStore
	BaseURL   string
}

// HandleQuotationExport returns a handler that exports one quotation.
// GET reads settings from the query string, POST from a JSON object body.
// Downloads are streamed as the file; email and WhatsApp exports answer
// with the delivery payload as JSON.
func HandleQuotationExport(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := e.Request.PathValue("id")
		if id == "" {
			return e.String(http.StatusBadRequest, "Missing quotation ID")
		}

		raw, err := requestSettings(e)
		if err != nil {
			return writeExportError(e, &services.ValidationError{Errors: []string{err.Error()}})
		}

		res, err := d.Exporter.Export(e.Request.Context(), services.ExportRequest{
			QuotationID: id,
			Format:      e.Request.PathValue("format"),
			Settings:    raw,
			OwnerID:     ownerID(e),
		})
		if err != nil {
			return writeExportError(e, err)
		}

		a := res.Artifact
		log.Printf("export: %s -> %s (%s)", id, a.Filename, humanize.Bytes(uint64(a.Size())))
		setWarnings(e, res.Warnings)
		setToast(e, "success", "Exported "+a.Filename)

		if res.Delivery != nil {
			return e.JSON(http.StatusOK, map[string]any{
				"filename": a.Filename,
				"delivery": res.Delivery,
				"warnings": nonNil(res.Warnings),
			})
		}
		return writeAttachment(e, a.Filename, a.MimeType, a.Data)
	}
}

// HandleBatchExport returns a handler that streams a zip of many
// quotations. The body is a JSON BatchRequest. Failed quotations appear in
// the archive as ERROR-{id}.txt; the response status only reflects request
// validation.
func HandleBatchExport(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req services.BatchRequest
		if err := json.NewDecoder(io.LimitReader(e.Request.Body, maxSettingsBody)).Decode(&req); err != nil {
			return writeExportError(e, &services.ValidationError{Errors: []string{"body must be a JSON batch request"}})
		}
		req.OwnerID = ownerID(e)

		h := e.Response.Header()
		h.Set("Content-Type", services.MimeTypeFor(services.FormatZIP))
		h.Set("Content-Disposition", contentDisposition("quotations-"+strings.ToLower(req.Format)+".zip"))

		report, err := d.Batch.Run(e.Request.Context(), e.Response, req, nil)
		if err != nil {
			if report == nil {
				// Nothing has been written yet.
				h.Del("Content-Type")
				h.Del("Content-Disposition")
				return writeExportError(e, err)
			}
			// The archive is already partly sent; the client sees a truncated zip.
			log.Printf("batch_export: job %s aborted: %v", report.JobID, err)
			return nil
		}
		return nil
	}
}

// writeAttachment sends data as a file download.
func writeAttachment(e *core.RequestEvent, filename, mimeType string, data []byte) error {
	h := e.Response.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", contentDisposition(filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	e.Response.WriteHeader(http.StatusOK)
	_, err := e.Response.Write(data)
	return err
}

func contentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func setWarnings(e *core.RequestEvent, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	e.Response.Header().Set("X-Export-Warnings", strings.Join(warnings, "; "))
}

// requestSettings reads the raw settings map of a single export request.
func requestSettings(e *core.RequestEvent) (map[string]any, error) {
	if e.Request.Method == http.MethodGet {
		raw := make(map[string]any)
		for k, v := range e.Request.URL.Query() {
			if len(v) > 0 {
				raw[k] = v[0]
			}
		}
		return raw, nil
	}
	return decodeSettings(e.Request.Body)
}

// decodeSettings parses a JSON object body. An empty body means no settings.
func decodeSettings(body io.Reader) (map[string]any, error) {
	var raw map[string]any
	err := json.NewDecoder(io.LimitReader(body, maxSettingsBody)).Decode(&raw)
	if errors.Is(err, io.EOF) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %v", err)
	}
	return raw, nil
}

// ownerID is the authenticated user's id, or "" for anonymous callers who
// only see public templates.
func ownerID(e *core.RequestEvent) string {
	if e.Auth == nil {
		return ""
	}
	return e.Auth.Id
}

// exportStatus maps an export error to its HTTP status.
func exportStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTemplateForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRenderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrRenderProcess):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeExportError answers with a JSON error body. Validation failures list
// every error and warning; timeouts carry Retry-After.
func writeExportError(e *core.RequestEvent, err error) error {
	status := exportStatus(err)
	body := map[string]any{
		"error":     err.Error(),
		"retryable": services.IsRetryable(err),
	}

	var ve *services.ValidationError
	if errors.As(err, &ve) {
		body["error"] = "invalid export request"
		body["errors"] = nonNil(ve.Errors)
		body["warnings"] = nonNil(ve.Warnings)
	}
	var ee *services.ExportError
	if errors.As(err, &ee) {
		body["quotationId"] = ee.QuotationID
		body["format"] = ee.Format
		body["stage"] = ee.Stage
	}
	if status == http.StatusGatewayTimeout {
		e.Response.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		log.Printf("export: %v", err)
	}

	setToast(e, "error", fmt.Sprint(body["error"]))
	return e.JSON(status, body)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
