package services

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// AmountNumFmt is the display format of every numeric cell.
const AmountNumFmt = "#,##0.000"

// Column widths, A through G: SL, Description, Qty, Unit, Rate, Amount, spare.
var sheetColumns = []string{"A", "B", "C", "D", "E", "F", "G"}
var sheetWidths = []float64{6, 45, 10, 8, 15, 15, 5}

// Excel paper size codes.
var excelPaperSizes = map[string]int{
	"Letter": 1,
	"Legal":  5,
	"A3":     8,
	"A4":     9,
	"A5":     11,
}

// SpreadsheetRenderer builds the quotation workbook.
type SpreadsheetRenderer struct {
	Company CompanyInfo
}

// NewSpreadsheetRenderer returns a workbook renderer for company.
func NewSpreadsheetRenderer(company CompanyInfo) *SpreadsheetRenderer {
	return &SpreadsheetRenderer{Company: company}
}

// ItemRowHeight is the height in points of an item row whose description
// has n characters.
func ItemRowHeight(n int) float64 {
	return math.Max(15, math.Ceil(float64(n)/60)*12)
}

// listRowHeight sizes a list entry spanning columns B to G.
func listRowHeight(n int) float64 {
	return math.Max(15, math.Ceil(float64(n)/95)*12)
}

type sheetStyles struct {
	company, small, title      int
	metaLabel, metaValue       int
	head                       int
	text, textShade            int
	center, centerShade        int
	number, numberShade        int
	sumLabel, sumValue         int
	grandLabel, grandValue     int
	listTitle, listNum, listTx int
	warranty, footer           int
}

// Render writes the workbook for data and returns the xlsx bytes.
func (r *SpreadsheetRenderer) Render(data ExportData, s ExportSettings) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(data.Quotation.QuotationNo)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	for i, col := range sheetColumns {
		if err := f.SetColWidth(sheet, col, col, sheetWidths[i]); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	st, err := newSheetStyles(f, s)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: sheet, st: st, row: 1}
	q := data.Quotation

	w.companyBand(r.Company, s)
	w.metadata(q)
	w.items(data.Items)
	w.summary(q, r.Company.Currency)
	w.list("Scope of Work", data.Scope, q.ShowScopeSerial)
	w.list("Materials", data.Materials, q.ShowMaterialSerial)
	w.list("Terms & Conditions", data.Terms, q.ShowTermSerial)
	w.warranty(q)
	w.footer(r.Company, s)
	if w.err != nil {
		return nil, w.err
	}

	if err := applyPageSetup(f, sheet, s, r.Company); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func newSheetStyles(f *excelize.File, s ExportSettings) (sheetStyles, error) {
	var st sheetStyles
	numFmt := AmountNumFmt
	primary := s.PrimaryColor
	shade := excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1}
	wrapTop := &excelize.Alignment{WrapText: true, Vertical: "top"}
	centerTop := &excelize.Alignment{Horizontal: "center", Vertical: "top"}
	numTop := &excelize.Alignment{Horizontal: "right", Vertical: "top"}

	defs := []struct {
		dst   *int
		name  string
		style *excelize.Style
	}{
		{&st.company, "company", &excelize.Style{
			Font: &excelize.Font{Bold: true, Size: pt(s.HeaderFontSize), Color: primary},
		}},
		{&st.small, "small", &excelize.Style{
			Font:      &excelize.Font{Size: pt(s.SmallFontSize), Color: "#555555"},
			Alignment: &excelize.Alignment{WrapText: true},
		}},
		{&st.title, "title", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: pt(s.SubheaderFontSize), Color: primary},
			Alignment: &excelize.Alignment{Horizontal: "center"},
			Border:    []excelize.Border{{Type: "bottom", Color: primary, Style: 2}},
		}},
		{&st.metaLabel, "meta label", &excelize.Style{
			Font: &excelize.Font{Bold: true, Size: pt(s.BodyFontSize)},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#F3F6F9"}, Pattern: 1},
		}},
		{&st.metaValue, "meta value", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.BodyFontSize)},
		}},
		{&st.head, "header", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: pt(s.TableFontSize)},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{primary}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thinBorders(),
		}},
		{&st.text, "text", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: wrapTop, Border: thinBorders(),
		}},
		{&st.textShade, "text shaded", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: wrapTop, Border: thinBorders(), Fill: shade,
		}},
		{&st.center, "center", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: centerTop, Border: thinBorders(),
		}},
		{&st.centerShade, "center shaded", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: centerTop, Border: thinBorders(), Fill: shade,
		}},
		{&st.number, "number", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: numTop, Border: thinBorders(), CustomNumFmt: &numFmt,
		}},
		{&st.numberShade, "number shaded", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Alignment: numTop, Border: thinBorders(), CustomNumFmt: &numFmt, Fill: shade,
		}},
		{&st.sumLabel, "summary label", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: pt(s.TableFontSize)},
			Alignment: &excelize.Alignment{Horizontal: "right"},
		}},
		{&st.sumValue, "summary value", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.TableFontSize)}, Border: thinBorders(), CustomNumFmt: &numFmt,
		}},
		{&st.grandLabel, "grand total label", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: pt(s.TableFontSize) + 1},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{primary}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "right"},
		}},
		{&st.grandValue, "grand total value", &excelize.Style{
			Font:         &excelize.Font{Bold: true, Color: "#FFFFFF", Size: pt(s.TableFontSize) + 1},
			Fill:         excelize.Fill{Type: "pattern", Color: []string{primary}, Pattern: 1},
			Border:       thinBorders(),
			CustomNumFmt: &numFmt,
		}},
		{&st.listTitle, "list title", &excelize.Style{
			Font: &excelize.Font{Bold: true, Size: pt(s.SubheaderFontSize), Color: primary},
		}},
		{&st.listNum, "list number", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.BodyFontSize)}, Alignment: centerTop,
		}},
		{&st.listTx, "list text", &excelize.Style{
			Font: &excelize.Font{Size: pt(s.BodyFontSize)}, Alignment: wrapTop,
		}},
		{&st.warranty, "warranty", &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: pt(s.BodyFontSize)},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFF4D6"}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"},
			Border:    thinBorders(),
		}},
		{&st.footer, "footer", &excelize.Style{
			Font:      &excelize.Font{Italic: true, Size: pt(s.SmallFontSize), Color: "#666666"},
			Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
			Border:    []excelize.Border{{Type: "top", Color: "#BFBFBF", Style: 1}},
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return st, fmt.Errorf("create %s style: %w", d.name, err)
		}
		*d.dst = id
	}
	return st, nil
}

// sheetWriter appends blocks top to bottom and keeps the first cell or
// merge error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	st    sheetStyles
	row   int
	err   error
}

func cellRef(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func (w *sheetWriter) set(col string, value any, style int) {
	if w.err != nil {
		return
	}
	ref := cellRef(col, w.row)
	if s, ok := value.(string); ok {
		value = sanitizeExcelCell(s)
	}
	if err := w.f.SetCellValue(w.sheet, ref, value); err != nil {
		w.err = fmt.Errorf("set %s: %w", ref, err)
		return
	}
	if err := w.f.SetCellStyle(w.sheet, ref, ref, style); err != nil {
		w.err = fmt.Errorf("style %s: %w", ref, err)
	}
}

// band writes value across from..to on the current row.
func (w *sheetWriter) band(from, to string, value any, style int) {
	if w.err != nil {
		return
	}
	if from != to {
		if err := w.f.MergeCell(w.sheet, cellRef(from, w.row), cellRef(to, w.row)); err != nil {
			w.err = fmt.Errorf("merge row %d: %w", w.row, err)
			return
		}
	}
	w.set(from, value, style)
	if w.err != nil || from == to {
		return
	}
	if err := w.f.SetCellStyle(w.sheet, cellRef(from, w.row), cellRef(to, w.row), style); err != nil {
		w.err = fmt.Errorf("style row %d: %w", w.row, err)
	}
}

// maxRowHeight is the largest row height Excel accepts, in points.
const maxRowHeight = 409

func (w *sheetWriter) height(h float64) {
	w.f.SetRowHeight(w.sheet, w.row, math.Min(h, maxRowHeight))
}

func (w *sheetWriter) companyBand(c CompanyInfo, s ExportSettings) {
	switch s.LetterheadMode {
	case "none":
	case "custom":
		if s.CustomHeader != "" {
			w.band("A", "G", s.CustomHeader, w.st.company)
			w.height(pt(s.HeaderFontSize) * 1.6)
			w.row++
		}
	default:
		w.band("A", "G", c.Name, w.st.company)
		w.height(pt(s.HeaderFontSize) * 1.6)
		w.row++
		for _, line := range []string{
			strings.ReplaceAll(c.Address, "\n", ", "),
			joinNonEmpty([]string{c.Phone, c.Email}, " | "),
			s.CustomHeader,
		} {
			if line == "" {
				continue
			}
			w.band("A", "G", line, w.st.small)
			w.row++
		}
	}
	w.row++
	w.band("A", "G", "QUOTATION", w.st.title)
	w.height(pt(s.SubheaderFontSize) * 1.6)
	w.row += 2
}

func (w *sheetWriter) metadata(q QuotationRecord) {
	add := func(k, v string) {
		w.band("A", "B", k, w.st.metaLabel)
		w.band("C", "G", v, w.st.metaValue)
		w.row++
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
	w.row++
}

func (w *sheetWriter) items(items []LineItem) {
	for i, h := range []string{"SL", "Description", "Qty", "Unit", "Rate", "Amount"} {
		w.set(sheetColumns[i], h, w.st.head)
	}
	w.height(20)
	w.row++

	for i, it := range items {
		text, center, number := w.st.text, w.st.center, w.st.number
		if i%2 == 1 {
			text, center, number = w.st.textShade, w.st.centerShade, w.st.numberShade
		}
		w.set("A", i+1, center)
		w.set("B", it.Description, text)
		w.set("C", it.Qty, number)
		w.set("D", it.Unit, center)
		w.set("E", it.Rate, number)
		w.set("F", it.Amount, number)
		w.height(ItemRowHeight(len([]rune(it.Description))))
		w.row++
	}
	w.row++
}

func (w *sheetWriter) summary(q QuotationRecord, currency string) {
	for _, r := range summaryRows(q) {
		label, value := w.st.sumLabel, w.st.sumValue
		text := r.Label
		if r.Grand {
			label, value = w.st.grandLabel, w.st.grandValue
			if currency != "" {
				text = fmt.Sprintf("%s (%s)", r.Label, currency)
			}
		}
		w.band("D", "E", text, label)
		w.set("F", r.Value, value)
		w.row++
	}
	w.row++
}

func (w *sheetWriter) list(title string, entries []string, numbered bool) {
	if len(entries) == 0 {
		return
	}
	w.band("A", "G", title, w.st.listTitle)
	w.height(20)
	w.row++
	for i, e := range entries {
		marker := "•"
		if numbered {
			marker = fmt.Sprintf("%d.", i+1)
		}
		w.set("A", marker, w.st.listNum)
		w.band("B", "G", e, w.st.listTx)
		w.height(listRowHeight(len([]rune(e))))
		w.row++
	}
	w.row++
}

func (w *sheetWriter) warranty(q QuotationRecord) {
	text := warrantyText(q)
	if text == "" {
		return
	}
	w.band("A", "G", "Warranty: "+text, w.st.warranty)
	w.height(listRowHeight(len([]rune(text)) + 10))
	w.row += 2
}

func (w *sheetWriter) footer(c CompanyInfo, s ExportSettings) {
	text := s.CustomFooter
	if text == "" {
		text = c.FooterText
	}
	if text == "" {
		return
	}
	w.band("A", "G", text, w.st.footer)
	w.height(listRowHeight(len([]rune(text))))
	w.row++
}

// applyPageSetup sets paper, orientation, margins and the printed
// header/footer from the settings.
func applyPageSetup(f *excelize.File, sheet string, s ExportSettings, c CompanyInfo) error {
	size, ok := excelPaperSizes[s.PaperSize]
	if !ok {
		size = excelPaperSizes["A4"]
	}
	orient := s.Orientation
	fitWidth, fitHeight := 1, 0
	if err := f.SetPageLayout(sheet, &excelize.PageLayoutOptions{
		Size:        &size,
		Orientation: &orient,
		FitToWidth:  &fitWidth,
		FitToHeight: &fitHeight,
	}); err != nil {
		return fmt.Errorf("set page layout: %w", err)
	}

	inch := func(mm int) *float64 {
		v := float64(mm) / 25.4
		return &v
	}
	if err := f.SetPageMargins(sheet, &excelize.PageLayoutMarginsOptions{
		Top:    inch(s.MarginTop),
		Bottom: inch(s.MarginBottom),
		Left:   inch(s.MarginLeft),
		Right:  inch(s.MarginRight),
	}); err != nil {
		return fmt.Errorf("set page margins: %w", err)
	}

	if !s.IncludeHeaderFooter {
		return nil
	}
	header := s.CustomHeader
	if header == "" {
		header = c.Name
	}
	footer := s.CustomFooter
	if footer == "" {
		footer = c.FooterText
	}
	if err := f.SetHeaderFooter(sheet, &excelize.HeaderFooterOptions{
		OddHeader: "&R" + escapeHeaderFooter(header),
		OddFooter: "&L" + escapeHeaderFooter(footer) + "&RPage &P of &N",
	}); err != nil {
		return fmt.Errorf("set header footer: %w", err)
	}
	return nil
}

// escapeHeaderFooter doubles ampersands, which start control codes.
func escapeHeaderFooter(s string) string {
	return strings.ReplaceAll(s, "&", "&&")
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "-", `\`, "-",
)

// sheetName derives a valid sheet name (max 31 chars) from the quotation number.
func sheetName(quotationNo string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(quotationNo))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Quotation"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote. Excel interprets cells starting with =, +, -,
// @, \t or \r as formulas, which can be abused for code execution or data theft.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
