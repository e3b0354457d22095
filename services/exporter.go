package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// TemplateProvider is the part of TemplateStore the exporter needs.
type TemplateProvider interface {
	Get(id, ownerID string) (*ExportTemplate, error)
	MarkUsed(id string) error
}

// ExporterConfig wires an Exporter.
type ExporterConfig struct {
	Source    QuotationSource
	Templates TemplateProvider // optional
	Engine    Engine
	Company   CompanyInfo
	BaseURL   string
	// Defaults underlay every request, below template and request values.
	Defaults map[string]any
}

// Exporter turns one quotation into one artifact. It holds no per-export
// state and is safe for concurrent use.
type Exporter struct {
	source    QuotationSource
	templates TemplateProvider
	company   CompanyInfo
	baseURL   string
	defaults  map[string]any

	pdf    *PDFRenderer
	native *NativePDFRenderer
	sheet  *SpreadsheetRenderer
	image  *ImageRenderer
}

// NewExporter builds an Exporter and its renderers.
func NewExporter(cfg ExporterConfig) *Exporter {
	return &Exporter{
		source:    cfg.Source,
		templates: cfg.Templates,
		company:   cfg.Company,
		baseURL:   cfg.BaseURL,
		defaults:  cfg.Defaults,
		pdf:       NewPDFRenderer(cfg.Engine, cfg.Company),
		native:    NewNativePDFRenderer(cfg.Company),
		sheet:     NewSpreadsheetRenderer(cfg.Company),
		image:     NewImageRenderer(cfg.Engine),
	}
}

// ExportRequest asks for one quotation in one format.
type ExportRequest struct {
	QuotationID string
	Format      string
	Settings    map[string]any // raw style input
	OwnerID     string         // used to resolve templateId
}

// ExportResult is a finished single export.
type ExportResult struct {
	Artifact *ExportArtifact
	Delivery *DeliveryPayload // nil for downloads
	Settings ExportSettings
	Warnings []string
}

// Export runs the whole pipeline for one quotation. Failures are returned as
// *ValidationError or *ExportError carrying quotation id, format and stage.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	format, s, warnings, err := e.Prepare(req)
	if err != nil {
		return nil, err
	}

	artifact, data, more, err := e.produce(ctx, req.QuotationID, format, s)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, more...)

	delivery, err := BuildDelivery(s.ExportMethod, s.Recipient, data.Quotation, e.company, artifact)
	if err != nil {
		return nil, withContext(err, ErrRenderProcess, req.QuotationID, format, StagePackage)
	}

	e.markUsed(s.TemplateID)

	return &ExportResult{Artifact: artifact, Delivery: delivery, Settings: s, Warnings: warnings}, nil
}

// Prepare validates the format and resolves settings for a request:
// defaults, then the referenced template, then the request's own values.
func (e *Exporter) Prepare(req ExportRequest) (string, ExportSettings, []string, error) {
	format, ok := NormalizeFormat(req.Format)
	if !ok {
		return "", ExportSettings{}, nil, &ValidationError{
			Errors: []string{fmt.Sprintf("unsupported format %q", req.Format)},
		}
	}

	raw := MergeRaw(e.defaults, nil)
	if id := templateID(req.Settings); id != "" {
		if e.templates == nil {
			return "", ExportSettings{}, nil, &ValidationError{Errors: []string{"templates are not available"}}
		}
		t, err := e.templates.Get(id, req.OwnerID)
		if err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				return "", ExportSettings{}, nil, &ValidationError{Errors: []string{fmt.Sprintf("template %q not found", id)}}
			}
			return "", ExportSettings{}, nil, withContext(err, ErrResource, req.QuotationID, format, StageSettings)
		}
		raw = MergeRaw(raw, templateLayer(t.Settings))
	}
	raw = MergeRaw(raw, req.Settings)
	if IsImageFormat(format) {
		raw["imageFormat"] = format
	}

	res := ResolveSettings(raw)
	if err := res.Err(); err != nil {
		return "", ExportSettings{}, nil, err
	}
	if err := ValidateRecipient(res.Settings.ExportMethod, res.Settings.Recipient); err != nil {
		return "", ExportSettings{}, nil, err
	}
	return format, res.Settings, res.Warnings, nil
}

// produce fetches, renders and names one quotation with resolved settings.
func (e *Exporter) produce(ctx context.Context, quotationID, format string, s ExportSettings) (*ExportArtifact, ExportData, []string, error) {
	data, err := e.source.Fetch(ctx, quotationID)
	if err != nil {
		kind := ErrResource
		if errors.Is(err, ErrNotFound) {
			kind = ErrNotFound
		}
		return nil, ExportData{}, nil, withContext(err, kind, quotationID, format, StageFetch)
	}

	var warnings []string
	var qrPNG []byte
	if s.IncludeQR {
		qrPNG, err = GenerateQRPNG(quotationID, e.baseURL, DefaultQROptions(s.QRSize))
		if err != nil {
			log.Printf("export: qr for %s failed, using placeholder: %v", quotationID, err)
			warnings = append(warnings, "QR code could not be generated, a placeholder was used")
			qrPNG = PlaceholderQRPNG(s.QRSize)
		}
	}

	out, err := e.render(ctx, data, s, format, qrPNG)
	if err != nil {
		return nil, ExportData{}, nil, withContext(err, ErrRenderProcess, quotationID, format, StageRender)
	}

	name := BuildFilename(data.Quotation, format, s.FilenameOptions())
	return newArtifact(out, format, name), data, warnings, nil
}

func (e *Exporter) render(ctx context.Context, data ExportData, s ExportSettings, format string, qrPNG []byte) ([]byte, error) {
	switch {
	case format == FormatXLSX:
		return e.sheet.Render(data, s)
	case format == FormatPDF && s.PDFEngine == "native":
		return e.native.Render(data, s, qrPNG)
	}

	html, err := RenderDocument(ctx, e.documentInput(data, s, qrPNG))
	if err != nil {
		return nil, &ExportError{Kind: ErrRenderProcess, Stage: StageDocument, Err: err}
	}
	if format == FormatPDF {
		return e.pdf.Render(ctx, html, s)
	}
	return e.image.Render(ctx, html, s)
}

func (e *Exporter) documentInput(data ExportData, s ExportSettings, qrPNG []byte) DocumentInput {
	in := DocumentInput{Data: data, Settings: s, Company: e.company}
	if qrPNG != nil {
		in.QRDataURL = PNGDataURL(qrPNG)
	}
	return in
}

// ViewDocument renders the public HTML page of a quotation.
func (e *Exporter) ViewDocument(ctx context.Context, quotationID string) (string, error) {
	data, err := e.source.Fetch(ctx, quotationID)
	if err != nil {
		return "", err
	}
	s := ResolveSettings(e.defaults).Settings
	s.IncludeQR = false
	return RenderDocument(ctx, e.documentInput(data, s, nil))
}

func (e *Exporter) markUsed(templateID string) {
	if templateID == "" || e.templates == nil {
		return
	}
	if err := e.templates.MarkUsed(templateID); err != nil {
		log.Printf("export: mark template %s used: %v", templateID, err)
	}
}

// templateLayer drops the per-request keys from a template's settings.
func templateLayer(s ExportSettings) map[string]any {
	m := s.AsMap()
	for _, k := range []string{"customFilename", "recipient", "templateId"} {
		delete(m, k)
	}
	return m
}

func templateID(raw map[string]any) string {
	v, ok := raw["templateId"].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
