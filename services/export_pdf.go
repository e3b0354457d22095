package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFRenderer prints an HTML document to PDF through a rendering engine.
type PDFRenderer struct {
	Engine  Engine
	Company CompanyInfo
}

// NewPDFRenderer returns a renderer that acquires one engine per call.
func NewPDFRenderer(engine Engine, company CompanyInfo) *PDFRenderer {
	return &PDFRenderer{Engine: engine, Company: company}
}

// Render prints html using the page geometry in s. The engine is released
// before Render returns, whatever the outcome.
func (r *PDFRenderer) Render(ctx context.Context, html string, s ExportSettings) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RenderTimeout())
	defer cancel()

	doc := injectHead(html, printCSS(s))
	layout := r.pageLayout(s)

	var out []byte
	err := withSurface(ctx, r.Engine, func(ctx context.Context, sf Surface) error {
		if err := sf.Load(ctx, doc); err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		b, err := sf.PrintPDF(ctx, layout)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ApplyWatermark(out, s.Watermark)
}

func (r *PDFRenderer) pageLayout(s ExportSettings) PageLayout {
	w, h := s.PaperMM()
	layout := PageLayout{
		WidthMM:        w,
		HeightMM:       h,
		Landscape:      s.Landscape(),
		MarginTopMM:    float64(s.MarginTop),
		MarginBottomMM: float64(s.MarginBottom),
		MarginLeftMM:   float64(s.MarginLeft),
		MarginRightMM:  float64(s.MarginRight),
	}
	if s.IncludeHeaderFooter {
		layout.HeaderHTML, layout.FooterHTML = bandTemplates(s, r.Company)
	}
	return layout
}

// bandTemplates builds the per-page header and footer. pageNumber and
// totalPages are filled in by the engine.
func bandTemplates(s ExportSettings, c CompanyInfo) (header, footer string) {
	style := fmt.Sprintf(`font-size:%dpx;width:100%%;padding:0 %dmm;color:#555;font-family:Arial,sans-serif;`,
		s.SmallFontSize, s.MarginLeft)

	headerText := s.CustomHeader
	if headerText == "" && s.LetterheadMode != "none" {
		headerText = c.Name
	}
	header = fmt.Sprintf(`<div style="%stext-align:right;">%s</div>`, style, templ.EscapeString(headerText))

	footerText := s.CustomFooter
	if footerText == "" {
		footerText = c.FooterText
	}
	footer = fmt.Sprintf(`<div style="%sdisplay:flex;justify-content:space-between;"><span>%s</span>`+
		`<span>Page <span class="pageNumber"></span> of <span class="totalPages"></span></span></div>`,
		style, templ.EscapeString(footerText))
	return header, footer
}

// printCSS keeps item rows, summary rows and the signature block on one page
// and sets the page box to match the requested geometry.
func printCSS(s ExportSettings) string {
	return fmt.Sprintf(`<style>
@page{size:%s %s;margin:%dmm %dmm %dmm %dmm}
html,body{-webkit-print-color-adjust:exact;print-color-adjust:exact}
thead{display:table-header-group}
tr,.item-row,.summary-row,.signature-block,.block li{break-inside:avoid;page-break-inside:avoid}
.summary,.signature-block{break-before:auto}
</style>`, s.PaperSize, s.Orientation, s.MarginTop, s.MarginRight, s.MarginBottom, s.MarginLeft)
}

var headClose = regexp.MustCompile(`(?i)</head>`)

// injectHead inserts snippet just before </head>, or at the very start when
// the document has no head.
func injectHead(html, snippet string) string {
	if loc := headClose.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + snippet + html[loc[0]:]
	}
	return snippet + html
}

var disablePDFConfig sync.Once

// ApplyWatermark overlays text diagonally on every page at low opacity.
// An empty text returns pdf unchanged.
func ApplyWatermark(pdf []byte, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return pdf, nil
	}
	disablePDFConfig.Do(api.DisableConfigDir)

	wm, err := api.TextWatermark(text,
		"fontname:Helvetica-Bold, points:72, rotation:45, opacity:0.12, fillcolor:#808080, scalefactor:0.7 rel",
		true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(pdf), &out, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	return out.Bytes(), nil
}

// PDFPageCount returns the number of pages in pdf.
func PDFPageCount(pdf []byte) (int, error) {
	disablePDFConfig.Do(api.DisableConfigDir)
	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}
