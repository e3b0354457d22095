package services

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func renderWorkbook(t *testing.T, data ExportData, raw map[string]any) (*excelize.File, string) {
	t.Helper()
	res := ResolveSettings(raw)
	if !res.IsValid {
		t.Fatalf("settings invalid: %v", res.Errors)
	}
	out, err := NewSpreadsheetRenderer(testCompany).Render(data, res.Settings)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	f, err := excelize.OpenReader(bytesReader(out))
	if err != nil {
		t.Fatalf("result is not valid Excel: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, f.GetSheetList()[0]
}

// findRow returns the 1-based row whose cell in column col equals value, or 0.
func findRow(t *testing.T, f *excelize.File, sheet, col, value string) int {
	t.Helper()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	idx := int(col[0] - 'A')
	for i, r := range rows {
		if idx < len(r) && r[idx] == value {
			return i + 1
		}
	}
	return 0
}

func TestSpreadsheet_ZeroDiscountAndRoundOffOmitted(t *testing.T) {
	f, sheet := renderWorkbook(t, sampleExportData(), nil)

	if r := findRow(t, f, sheet, "D", "Discount"); r != 0 {
		t.Errorf("discount row present at %d, want omitted", r)
	}
	if r := findRow(t, f, sheet, "D", "Round Off"); r != 0 {
		t.Errorf("round off row present at %d, want omitted", r)
	}
	if r := findRow(t, f, sheet, "D", "Sub Total"); r == 0 {
		t.Error("sub total row missing")
	}
	if r := findRow(t, f, sheet, "D", "VAT (5%)"); r == 0 {
		t.Error("VAT row with rate missing")
	}
}

func TestSpreadsheet_DiscountRowFormatted(t *testing.T) {
	data := sampleExportData()
	data.Quotation.Discount = 25
	data.Quotation.RoundOff = -0.25
	f, sheet := renderWorkbook(t, data, nil)

	r := findRow(t, f, sheet, "D", "Discount")
	if r == 0 {
		t.Fatal("discount row missing")
	}
	ref := cellRef("F", r)

	raw, _ := f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if raw != "25" {
		t.Errorf("raw discount = %q, want 25", raw)
	}
	shown, _ := f.GetCellValue(sheet, ref)
	if shown != "25.000" {
		t.Errorf("displayed discount = %q, want 25.000", shown)
	}
	styleID, err := f.GetCellStyle(sheet, ref)
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		t.Fatalf("GetStyle: %v", err)
	}
	if style.CustomNumFmt == nil || *style.CustomNumFmt != AmountNumFmt {
		t.Errorf("discount number format = %v, want %s", style.CustomNumFmt, AmountNumFmt)
	}

	if findRow(t, f, sheet, "D", "Round Off") == 0 {
		t.Error("non-zero round off row missing")
	}
}

func TestSpreadsheet_GrandTotalHighlighted(t *testing.T) {
	f, sheet := renderWorkbook(t, sampleExportData(), nil)

	r := findRow(t, f, sheet, "D", "Grand Total (OMR)")
	if r == 0 {
		t.Fatal("grand total row missing")
	}
	styleID, _ := f.GetCellStyle(sheet, cellRef("F", r))
	style, err := f.GetStyle(styleID)
	if err != nil {
		t.Fatalf("GetStyle: %v", err)
	}
	if style.Font == nil || !style.Font.Bold {
		t.Error("grand total value is not bold")
	}
	if len(style.Fill.Color) == 0 {
		t.Error("grand total value has no fill")
	}
	raw, _ := f.GetCellValue(sheet, cellRef("F", r), excelize.Options{RawCellValue: true})
	if raw != "929.25" {
		t.Errorf("grand total = %q, want 929.25", raw)
	}
}

func TestSpreadsheet_ColumnWidthsAndRowHeights(t *testing.T) {
	data := sampleExportData()
	data.Items[0].Description = strings.Repeat("x", 130)
	f, sheet := renderWorkbook(t, data, nil)

	for i, col := range sheetColumns {
		w, err := f.GetColWidth(sheet, col)
		if err != nil {
			t.Fatalf("GetColWidth(%s): %v", col, err)
		}
		if w != sheetWidths[i] {
			t.Errorf("width of %s = %v, want %v", col, w, sheetWidths[i])
		}
	}

	head := findRow(t, f, sheet, "B", "Description")
	if head == 0 {
		t.Fatal("items header row missing")
	}
	h, err := f.GetRowHeight(sheet, head+1)
	if err != nil {
		t.Fatalf("GetRowHeight: %v", err)
	}
	if h != 36 {
		t.Errorf("row height for 130 chars = %v, want 36", h)
	}
	h, _ = f.GetRowHeight(sheet, head+2)
	if h != 15 {
		t.Errorf("row height for short description = %v, want 15", h)
	}
}

func TestItemRowHeight(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 15},
		{10, 15},
		{60, 15},
		{61, 24},
		{120, 24},
		{121, 36},
		{600, 120},
	}
	for _, tt := range tests {
		if got := ItemRowHeight(tt.n); got != tt.want {
			t.Errorf("ItemRowHeight(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSpreadsheet_ListsNumbering(t *testing.T) {
	f, sheet := renderWorkbook(t, sampleExportData(), nil)

	scope := findRow(t, f, sheet, "A", "Scope of Work")
	if scope == 0 {
		t.Fatal("scope block missing")
	}
	first, _ := f.GetCellValue(sheet, cellRef("A", scope+1))
	if first != "1." {
		t.Errorf("scope marker = %q, want 1.", first)
	}

	materials := findRow(t, f, sheet, "A", "Materials")
	if materials == 0 {
		t.Fatal("materials block missing")
	}
	marker, _ := f.GetCellValue(sheet, cellRef("A", materials+1))
	if marker != "•" {
		t.Errorf("materials marker = %q, want bullet", marker)
	}
}

func TestSpreadsheet_SheetNameAndPageSetup(t *testing.T) {
	f, sheet := renderWorkbook(t, sampleExportData(), map[string]any{
		"paperSize":   "A3",
		"orientation": "landscape",
	})
	if sheet != "#WP-2025S-123" {
		t.Errorf("sheet name = %q", sheet)
	}
	layout, err := f.GetPageLayout(sheet)
	if err != nil {
		t.Fatalf("GetPageLayout: %v", err)
	}
	if layout.Size == nil || *layout.Size != 8 {
		t.Errorf("paper size = %v, want 8 (A3)", layout.Size)
	}
	if layout.Orientation == nil || *layout.Orientation != "landscape" {
		t.Errorf("orientation = %v, want landscape", layout.Orientation)
	}
}

func TestSpreadsheet_FormulaInjectionSanitized(t *testing.T) {
	data := sampleExportData()
	data.Items[0].Description = "=HYPERLINK(\"http://evil\")"
	f, sheet := renderWorkbook(t, data, nil)

	head := findRow(t, f, sheet, "B", "Description")
	v, _ := f.GetCellValue(sheet, cellRef("B", head+1))
	if !strings.HasPrefix(v, "'=") {
		t.Errorf("description = %q, want quote-prefixed", v)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "Quotation"},
		{"Q/2025:01", "Q-202501"},
		{strings.Repeat("A", 40), strings.Repeat("A", 31)},
	}
	for _, tt := range tests {
		if got := sheetName(tt.in); got != tt.want {
			t.Errorf("sheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeExcelCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"+1", "'+1"},
		{"-1", "'-1"},
		{"@cmd", "'@cmd"},
	}
	for _, tt := range tests {
		if got := sanitizeExcelCell(tt.in); got != tt.want {
			t.Errorf("sanitizeExcelCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSheetWriter_KeepsFirstCellError(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *sheetWriter)
		want  string
	}{
		{"bad column", func(w *sheetWriter) { w.set("", "x", 0) }, "set 1"},
		{"bad style", func(w *sheetWriter) { w.set("A", "x", 9999) }, "style A1"},
		{"bad band style", func(w *sheetWriter) { w.band("A", "C", "x", 9999) }, "style A1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := excelize.NewFile()
			defer f.Close()
			w := &sheetWriter{f: f, sheet: "Sheet1", row: 1}
			tt.write(w)
			if w.err == nil || !strings.Contains(w.err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", w.err, tt.want)
			}
			first := w.err
			w.row++
			w.set("B", "later", 0)
			if w.err != first {
				t.Errorf("first error replaced by %v", w.err)
			}
			if v, _ := f.GetCellValue("Sheet1", "B2"); v != "" {
				t.Errorf("B2 = %q, writes after an error should be skipped", v)
			}
		})
	}
}
