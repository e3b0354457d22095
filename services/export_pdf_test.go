package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const testHTML = "<!DOCTYPE html><html><head><title>t</title></head><body><p>hello</p></body></html>"

func TestPDFRenderer_ReleasesEngineOnSuccess(t *testing.T) {
	eng := newFakeEngine(t)
	out, err := NewPDFRenderer(eng, testCompany).Render(context.Background(), testHTML, DefaultSettings())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !mimetype.Detect(out).Is("application/pdf") {
		t.Errorf("output sniffed as %s", mimetype.Detect(out))
	}
	if eng.acquired != 1 || eng.leaked() != 0 {
		t.Errorf("acquired %d, leaked %d; want 1 and 0", eng.acquired, eng.leaked())
	}
}

func TestPDFRenderer_ReleasesEngineOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeEngine)
		wantKind  error
		retryable bool
	}{
		{"load error", func(f *fakeEngine) { f.loadErr = errEngineClosed }, ErrRenderProcess, false},
		{"print error", func(f *fakeEngine) { f.printErr = errEngineClosed }, ErrRenderProcess, false},
		{"crash", func(f *fakeEngine) { f.panicPrint = true }, ErrRenderProcess, false},
		{"hang", func(f *fakeEngine) { f.hang = true }, ErrRenderTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine(t)
			tt.setup(eng)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := NewPDFRenderer(eng, testCompany).Render(ctx, testHTML, DefaultSettings())
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want %v", err, tt.wantKind)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if eng.leaked() != 0 {
				t.Errorf("%d engine instances leaked", eng.leaked())
			}
		})
	}
}

func TestPDFRenderer_AcquireFailure(t *testing.T) {
	eng := &fakeEngine{acquireErr: errors.New("executable not found")}
	_, err := NewPDFRenderer(eng, testCompany).Render(context.Background(), testHTML, DefaultSettings())
	if !errors.Is(err, ErrRenderProcess) {
		t.Errorf("err = %v, want ErrRenderProcess", err)
	}
}

func TestPDFRenderer_InjectsPrintCSS(t *testing.T) {
	eng := newFakeEngine(t)
	s := ResolveSettings(map[string]any{"paperSize": "A3", "orientation": "landscape"}).Settings
	if _, err := NewPDFRenderer(eng, testCompany).Render(context.Background(), testHTML, s); err != nil {
		t.Fatalf("Render: %v", err)
	}

	html := eng.lastHTML()
	for _, want := range []string{"@page{size:A3 landscape", "break-inside:avoid", ".signature-block"} {
		if !strings.Contains(html, want) {
			t.Errorf("loaded document missing %q", want)
		}
	}
	if strings.Index(html, "@page") > strings.Index(html, "</head>") {
		t.Error("print css should be inside <head>")
	}

	layout := eng.layouts[0]
	if layout.WidthMM != 420 || layout.HeightMM != 297 || !layout.Landscape {
		t.Errorf("layout = %+v, want 420x297 landscape", layout)
	}
	if !strings.Contains(layout.FooterHTML, "pageNumber") || !strings.Contains(layout.FooterHTML, "totalPages") {
		t.Errorf("footer %q should carry page numbering", layout.FooterHTML)
	}
}

func TestPDFRenderer_NoBandsWhenDisabled(t *testing.T) {
	eng := newFakeEngine(t)
	s := ResolveSettings(map[string]any{"includeHeaderFooter": false}).Settings
	if _, err := NewPDFRenderer(eng, testCompany).Render(context.Background(), testHTML, s); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if eng.layouts[0].HeaderHTML != "" || eng.layouts[0].FooterHTML != "" {
		t.Error("header and footer should be empty")
	}
}

func TestBandTemplates_EscapesText(t *testing.T) {
	s := ResolveSettings(map[string]any{"customHeader": "<b>R&D</b>"}).Settings
	header, _ := bandTemplates(s, testCompany)
	if strings.Contains(header, "<b>") || !strings.Contains(header, "R&amp;D") {
		t.Errorf("header not escaped: %s", header)
	}
}

func TestInjectHead_NoHead(t *testing.T) {
	got := injectHead("<p>x</p>", "<style></style>")
	if got != "<style></style><p>x</p>" {
		t.Errorf("injectHead = %q", got)
	}
}

func TestApplyWatermark(t *testing.T) {
	pdf := samplePDF(t)

	same, err := ApplyWatermark(pdf, "  ")
	if err != nil {
		t.Fatalf("ApplyWatermark empty: %v", err)
	}
	if len(same) != len(pdf) {
		t.Error("empty watermark should return the input unchanged")
	}

	marked, err := ApplyWatermark(pdf, "DRAFT")
	if err != nil {
		t.Fatalf("ApplyWatermark: %v", err)
	}
	if !mimetype.Detect(marked).Is("application/pdf") {
		t.Fatalf("watermarked output sniffed as %s", mimetype.Detect(marked))
	}

	before, err := PDFPageCount(pdf)
	if err != nil {
		t.Fatalf("PDFPageCount: %v", err)
	}
	after, err := PDFPageCount(marked)
	if err != nil {
		t.Fatalf("PDFPageCount watermarked: %v", err)
	}
	if before != after || before < 1 {
		t.Errorf("page count %d before, %d after watermark", before, after)
	}
}
