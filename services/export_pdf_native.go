package services

import (
	"fmt"
	"image/color"
	"math"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// NativePDFRenderer lays the quotation out directly with maroto, without a
// browser. Every table row is a single maroto row, so rows are never split
// across pages.
type NativePDFRenderer struct {
	Company CompanyInfo
}

// NewNativePDFRenderer returns a browserless PDF renderer.
func NewNativePDFRenderer(company CompanyInfo) *NativePDFRenderer {
	return &NativePDFRenderer{Company: company}
}

var marotoPageSizes = map[string]pagesize.Type{
	"A3":     pagesize.A3,
	"A4":     pagesize.A4,
	"A5":     pagesize.A5,
	"Letter": pagesize.Letter,
	"Legal":  pagesize.Legal,
}

// Render builds the PDF. qrPNG may be nil to omit the QR code.
func (r *NativePDFRenderer) Render(data ExportData, s ExportSettings, qrPNG []byte) ([]byte, error) {
	orient := orientation.Vertical
	if s.Landscape() {
		orient = orientation.Horizontal
	}
	size, ok := marotoPageSizes[s.PaperSize]
	if !ok {
		size = pagesize.A4
	}

	b := config.NewBuilder().
		WithOrientation(orient).
		WithPageSize(size).
		WithTopMargin(float64(s.MarginTop)).
		WithBottomMargin(float64(s.MarginBottom)).
		WithLeftMargin(float64(s.MarginLeft)).
		WithRightMargin(float64(s.MarginRight))
	if s.IncludeHeaderFooter {
		b = b.WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    pt(s.SmallFontSize),
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		})
	}

	m := maroto.New(b.Build())
	st := newNativeStyle(s)

	if s.IncludeHeaderFooter {
		if err := m.RegisterFooter(r.footerRow(s, st)); err != nil {
			return nil, fmt.Errorf("register footer: %w", err)
		}
	}

	r.addLetterhead(m, s, st)
	addNativeMeta(m, data.Quotation, st)
	addNativeItems(m, data.Items, st)
	addNativeSummary(m, data.Quotation, r.Company.Currency, st)
	addNativeList(m, "Scope of Work", data.Scope, data.Quotation.ShowScopeSerial, st)
	addNativeList(m, "Materials", data.Materials, data.Quotation.ShowMaterialSerial, st)
	addNativeList(m, "Terms & Conditions", data.Terms, data.Quotation.ShowTermSerial, st)
	if w := warrantyText(data.Quotation); w != "" {
		addNativeList(m, "Warranty", []string{w}, false, st)
	}
	r.addSignature(m, s, qrPNG, st)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return ApplyWatermark(doc.GetBytes(), s.Watermark)
}

// nativeStyle holds the text props derived from the settings.
type nativeStyle struct {
	primary   *props.Color
	header    props.Text
	subheader props.Text
	body      props.Text
	table     props.Text
	small     props.Text
}

func newNativeStyle(s ExportSettings) nativeStyle {
	c, _ := parseHexColor(s.PrimaryColor, color.RGBA{R: 0x1F, G: 0x4E, B: 0x79, A: 255})
	primary := &props.Color{Red: int(c.R), Green: int(c.G), Blue: int(c.B)}
	return nativeStyle{
		primary:   primary,
		header:    props.Text{Size: pt(s.HeaderFontSize), Style: fontstyle.Bold, Color: primary},
		subheader: props.Text{Size: pt(s.SubheaderFontSize), Style: fontstyle.Bold, Color: primary},
		body:      props.Text{Size: pt(s.BodyFontSize)},
		table:     props.Text{Size: pt(s.TableFontSize)},
		small:     props.Text{Size: pt(s.SmallFontSize), Color: &props.Color{Red: 90, Green: 90, Blue: 90}},
	}
}

// pt converts CSS pixels to points.
func pt(px int) float64 {
	return float64(px) * 0.75
}

// lineHeight is the row height in mm for text of the given point size.
func lineHeight(size float64) float64 {
	return size*0.3528*1.5 + 1
}

func (r *NativePDFRenderer) addLetterhead(m core.Maroto, s ExportSettings, st nativeStyle) {
	c := r.Company
	switch s.LetterheadMode {
	case "none":
	case "custom":
		if s.CustomHeader != "" {
			m.AddRows(row.New(lineHeight(st.header.Size)).Add(col.New(12).Add(text.New(s.CustomHeader, st.header))))
		}
	default:
		m.AddRows(row.New(lineHeight(st.header.Size)).Add(col.New(12).Add(text.New(c.Name, st.header))))
		for _, line := range []string{c.Address, joinNonEmpty([]string{c.Phone, c.Email}, " | "), s.CustomHeader} {
			if line == "" {
				continue
			}
			m.AddRows(row.New(lineHeight(st.small.Size)).Add(col.New(12).Add(text.New(line, st.small))))
		}
	}

	title := st.subheader
	title.Align = align.Center
	m.AddRows(
		row.New(3),
		row.New(lineHeight(title.Size)).Add(col.New(12).Add(text.New("QUOTATION", title))),
		row.New(2),
	)
}

func addNativeMeta(m core.Maroto, q QuotationRecord, st nativeStyle) {
	label := st.body
	label.Style = fontstyle.Bold
	h := lineHeight(st.body.Size)
	labelCell := &props.Cell{BackgroundColor: &props.Color{Red: 243, Green: 246, Blue: 249}}

	add := func(k, v string) {
		m.AddRows(row.New(h).Add(
			col.New(3).Add(text.New(k, label)).WithStyle(labelCell),
			col.New(9).Add(text.New(v, st.body)),
		))
	}
	add("Quotation No", q.QuotationNo)
	if !q.Date.IsZero() {
		add("Date", q.Date.Format("02 Jan 2006"))
	}
	if q.ProjectName != "" {
		add("Project", q.ProjectName)
	}
	for _, p := range q.parties() {
		add(p.Label, joinNonEmpty([]string{p.Party.Name, p.Party.Phone}, " / "))
	}
	m.AddRows(row.New(4))
}

// nativeItemWidths are the grid widths of SL, Description, Qty, Unit, Rate, Amount.
var nativeItemWidths = []int{1, 5, 1, 1, 2, 2}

func addNativeItems(m core.Maroto, items []LineItem, st nativeStyle) {
	head := st.table
	head.Style = fontstyle.Bold
	head.Align = align.Center
	head.Color = &props.Color{Red: 255, Green: 255, Blue: 255}
	headCell := &props.Cell{BackgroundColor: st.primary}

	headers := []string{"SL", "Description", "Qty", "Unit", "Rate", "Amount"}
	cols := make([]core.Col, len(headers))
	for i, h := range headers {
		cols[i] = col.New(nativeItemWidths[i]).Add(text.New(h, head)).WithStyle(headCell)
	}
	m.AddRows(row.New(lineHeight(head.Size) + 2).Add(cols...))

	center := st.table
	center.Align = align.Center
	left := st.table
	left.Align = align.Left
	right := st.table
	right.Align = align.Right
	shade := &props.Cell{BackgroundColor: &props.Color{Red: 247, Green: 247, Blue: 247}}

	for i, it := range items {
		cells := []core.Col{
			col.New(nativeItemWidths[0]).Add(text.New(fmt.Sprintf("%d", i+1), center)),
			col.New(nativeItemWidths[1]).Add(text.New(it.Description, left)),
			col.New(nativeItemWidths[2]).Add(text.New(FormatAmount(it.Qty), right)),
			col.New(nativeItemWidths[3]).Add(text.New(it.Unit, center)),
			col.New(nativeItemWidths[4]).Add(text.New(FormatAmount(it.Rate), right)),
			col.New(nativeItemWidths[5]).Add(text.New(FormatAmount(it.Amount), right)),
		}
		if i%2 == 1 {
			for j := range cells {
				cells[j] = cells[j].WithStyle(shade)
			}
		}
		m.AddRows(row.New(wrappedHeight(it.Description, 50, st.table.Size)).Add(cells...))
	}
}

// wrappedHeight estimates the height of text wrapped at perLine characters.
func wrappedHeight(s string, perLine int, size float64) float64 {
	lines := math.Ceil(float64(len([]rune(s))) / float64(perLine))
	if lines < 1 {
		lines = 1
	}
	return lines*lineHeight(size) + 1
}

func addNativeSummary(m core.Maroto, q QuotationRecord, currency string, st nativeStyle) {
	m.AddRows(row.New(3))
	label := st.table
	label.Style = fontstyle.Bold
	label.Align = align.Right
	value := st.table
	value.Align = align.Right
	h := lineHeight(st.table.Size) + 1

	for _, r := range summaryRows(q) {
		l, v := label, value
		var cell *props.Cell
		amount := FormatAmount(r.Value)
		if r.Grand {
			white := &props.Color{Red: 255, Green: 255, Blue: 255}
			l.Color, v.Color = white, white
			v.Style = fontstyle.Bold
			cell = &props.Cell{BackgroundColor: st.primary}
			amount = FormatCurrency(currency, r.Value)
		}
		lc := col.New(3).Add(text.New(r.Label, l))
		vc := col.New(3).Add(text.New(amount, v))
		if cell != nil {
			lc, vc = lc.WithStyle(cell), vc.WithStyle(cell)
		}
		m.AddRows(row.New(h).Add(col.New(6), lc, vc))
	}
}

func addNativeList(m core.Maroto, title string, entries []string, numbered bool, st nativeStyle) {
	if len(entries) == 0 {
		return
	}
	m.AddRows(
		row.New(4),
		row.New(lineHeight(st.subheader.Size)).Add(col.New(12).Add(text.New(title, st.subheader))),
	)
	for i, e := range entries {
		prefix := "- "
		if numbered {
			prefix = fmt.Sprintf("%d. ", i+1)
		}
		m.AddRows(row.New(wrappedHeight(e, 110, st.body.Size)).Add(col.New(12).Add(text.New(prefix+e, st.body))))
	}
}

// addSignature keeps QR, stamp and signature in one row.
func (r *NativePDFRenderer) addSignature(m core.Maroto, s ExportSettings, qrPNG []byte, st nativeStyle) {
	if !s.IncludeSignature && !s.IncludeStamp && qrPNG == nil {
		return
	}
	h := math.Max(30, float64(s.QRSize)*25.4/96+6)
	center := st.small
	center.Align = align.Center

	qrCol := col.New(4)
	if qrPNG != nil {
		qrCol = col.New(4).Add(image.NewFromBytes(qrPNG, extension.Png, props.Rect{Center: true, Percent: 90}))
	}
	stampCol := col.New(4)
	if s.IncludeStamp {
		stampCol = col.New(4).Add(text.New("Company Stamp", props.Text{Size: center.Size, Align: align.Center, Top: h / 2}))
	}
	signCol := col.New(4)
	if s.IncludeSignature {
		signCol = col.New(4).Add(
			text.New("____________________", props.Text{Size: center.Size, Align: align.Center, Top: h - 14}),
			text.New("For "+r.Company.Name, props.Text{Size: center.Size, Align: align.Center, Top: h - 9}),
			text.New("Authorised Signatory", props.Text{Size: center.Size, Align: align.Center, Top: h - 5}),
		)
	}

	m.AddRows(row.New(6), row.New(h).Add(qrCol, stampCol, signCol))
}

func (r *NativePDFRenderer) footerRow(s ExportSettings, st nativeStyle) core.Row {
	footer := s.CustomFooter
	if footer == "" {
		footer = r.Company.FooterText
	}
	small := st.small
	small.Align = align.Left
	return row.New(lineHeight(small.Size)).Add(col.New(12).Add(text.New(footer, small)))
}
