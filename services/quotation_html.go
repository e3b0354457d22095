package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
)

// DocumentInput is everything the HTML quotation page is built from.
type DocumentInput struct {
	Data      ExportData
	Settings  ExportSettings
	Company   CompanyInfo
	QRDataURL string // empty omits the QR block
}

// RenderDocument renders QuotationDocument to a string.
func RenderDocument(ctx context.Context, in DocumentInput) (string, error) {
	var buf bytes.Buffer
	if err := QuotationDocument(in).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

var documentItemHeaders = []string{"SL", "Description", "Qty", "Unit", "Rate", "Amount"}

func companyContact(c CompanyInfo) string {
	return joinNonEmpty([]string{c.Phone, c.Email}, " | ")
}

// footerText prefers the per-export footer over the company default.
func footerText(in DocumentInput) string {
	if in.Settings.CustomFooter != "" {
		return in.Settings.CustomFooter
	}
	return in.Company.FooterText
}

func styleElement(s ExportSettings) string {
	return "<style>" + cssVariables(s) + documentCSS + "</style>"
}

// summaryRow is one line of the totals block.
type summaryRow struct {
	Label string
	Value float64
	Grand bool
}

// summaryRows lists the totals block in print order. Discount and round-off
// are left out when exactly zero.
func summaryRows(q QuotationRecord) []summaryRow {
	rows := []summaryRow{{Label: "Sub Total", Value: q.TotalAmount}}
	if q.Discount != 0 {
		rows = append(rows, summaryRow{Label: "Discount", Value: q.Discount})
	}
	rows = append(rows, summaryRow{Label: fmt.Sprintf("VAT (%s)", FormatPercent(q.VATRate)), Value: q.VATAmount})
	if q.RoundOff != 0 {
		rows = append(rows, summaryRow{Label: "Round Off", Value: q.RoundOff})
	}
	return append(rows, summaryRow{Label: "Grand Total", Value: q.GrandTotal, Grand: true})
}

func warrantyText(q QuotationRecord) string {
	var parts []string
	switch {
	case q.WarrantyYears == 1:
		parts = append(parts, "1 year warranty")
	case q.WarrantyYears > 1:
		parts = append(parts, fmt.Sprintf("%d years warranty", q.WarrantyYears))
	}
	if n := strings.TrimSpace(q.WarrantyNote); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, ". ")
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func cssVariables(s ExportSettings) string {
	vars := s.CSSVars()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root{")
	for _, k := range keys {
		fmt.Fprintf(&b, "--%s:%s;", k, vars[k])
	}
	b.WriteString("}")
	return b.String()
}

const documentCSS = `
*{box-sizing:border-box}
body{margin:0;font-family:"Helvetica Neue",Arial,sans-serif;font-size:var(--bodyFontSize);color:#222;background:#fff}
.quotation{padding:8px}
.letterhead{border-bottom:3px solid var(--primaryColor);margin-bottom:12px}
.letterhead h1{margin:0;font-size:var(--headerFontSize);color:var(--primaryColor)}
.letterhead p{margin:2px 0;font-size:var(--smallFontSize)}
.doc-title{text-align:center;font-size:var(--subheaderFontSize);letter-spacing:2px;color:var(--primaryColor)}
table{width:100%;border-collapse:collapse}
.meta th{text-align:left;width:25%;padding:3px 6px;background:#f3f6f9}
.meta td{padding:3px 6px}
.items{margin-top:12px;font-size:var(--tableFontSize)}
.items th{background:var(--primaryColor);color:#fff;padding:6px;border:1px solid #999}
.items td{padding:5px 6px;border:1px solid #bbb;vertical-align:top}
.items tbody tr:nth-child(even){background:#f7f7f7}
.num{text-align:right;white-space:nowrap}
.sl,.unit{text-align:center}
.summary{width:45%;margin:10px 0 0 auto;font-size:var(--tableFontSize)}
.summary th{text-align:right;padding:4px 6px;font-weight:600}
.summary td{padding:4px 6px;border-bottom:1px solid #ddd}
.summary .grand-total th,.summary .grand-total td{background:var(--primaryColor);color:#fff;font-weight:700}
.block h3{font-size:var(--subheaderFontSize);color:var(--primaryColor);margin:14px 0 4px}
.block ol,.block ul{margin:0;padding-left:20px}
.signature-block{display:flex;justify-content:space-between;align-items:flex-end;margin-top:28px}
.qr{text-align:center;font-size:var(--smallFontSize)}
.qr img{width:var(--qrSize);height:var(--qrSize);display:block}
.stamp{width:110px;height:110px;border:2px dashed #aaa;border-radius:50%;display:flex;align-items:center;justify-content:center;color:#999;font-size:var(--smallFontSize)}
.sign{text-align:center;min-width:200px}
.sign .line{border-top:1px solid #333;margin-bottom:4px}
.sign span{display:block;font-size:var(--smallFontSize)}
.doc-footer{margin-top:24px;padding-top:6px;border-top:1px solid #ccc;text-align:center;font-size:var(--smallFontSize);color:#666}
`
