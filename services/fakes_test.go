package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeEngine is an in-memory Engine that records every surface it hands out.
type fakeEngine struct {
	mu       sync.Mutex
	acquired int
	closed   int
	open     int
	maxOpen  int
	loaded   []string
	layouts  []PageLayout
	views    []Viewport

	acquireErr error
	loadErr    error
	printErr   error
	panicPrint bool
	hang       bool // Load blocks until the context is done

	pdf []byte
	png []byte
}

func (f *fakeEngine) Acquire(ctx context.Context) (Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	f.open++
	f.maxOpen = max(f.maxOpen, f.open)
	return &fakeSurface{eng: f}, nil
}

func (f *fakeEngine) leaked() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired - f.closed
}

func (f *fakeEngine) lastHTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loaded) == 0 {
		return ""
	}
	return f.loaded[len(f.loaded)-1]
}

type fakeSurface struct {
	eng  *fakeEngine
	once sync.Once
}

func (s *fakeSurface) Load(ctx context.Context, html string) error {
	s.eng.mu.Lock()
	s.eng.loaded = append(s.eng.loaded, html)
	hang, err := s.eng.hang, s.eng.loadErr
	s.eng.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSurface) PrintPDF(ctx context.Context, layout PageLayout) ([]byte, error) {
	s.eng.mu.Lock()
	s.eng.layouts = append(s.eng.layouts, layout)
	s.eng.mu.Unlock()
	if s.eng.panicPrint {
		panic("renderer crashed")
	}
	if s.eng.printErr != nil {
		return nil, s.eng.printErr
	}
	return s.eng.pdf, nil
}

func (s *fakeSurface) Capture(ctx context.Context, vp Viewport) ([]byte, error) {
	s.eng.mu.Lock()
	s.eng.views = append(s.eng.views, vp)
	s.eng.mu.Unlock()
	return s.eng.png, nil
}

func (s *fakeSurface) Close() error {
	s.once.Do(func() {
		s.eng.mu.Lock()
		s.eng.closed++
		s.eng.open--
		s.eng.mu.Unlock()
	})
	return nil
}

var errEngineClosed = errors.New("target closed unexpectedly")

// newFakeEngine returns an engine producing a real PDF and a real PNG.
func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	return &fakeEngine{pdf: samplePDF(t), png: samplePNG(t, 794, 1123)}
}

var (
	samplePDFOnce  sync.Once
	samplePDFBytes []byte
	samplePDFErr   error
)

// samplePDF is a real PDF built by the native renderer.
func samplePDF(t *testing.T) []byte {
	t.Helper()
	samplePDFOnce.Do(func() {
		samplePDFBytes, samplePDFErr = NewNativePDFRenderer(testCompany).Render(sampleExportData(), DefaultSettings(), nil)
	})
	if samplePDFErr != nil {
		t.Fatalf("sample pdf: %v", samplePDFErr)
	}
	return samplePDFBytes
}

// samplePNG is a white page with a grey band, standing in for a screenshot.
func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if y > h/4 && y < h/3 {
				c = color.NRGBA{R: 120, G: 120, B: 120, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode sample png: %v", err)
	}
	return buf.Bytes()
}

// mapSource serves quotations from memory and counts fetches.
type mapSource struct {
	data    map[string]ExportData
	fetches atomic.Int32
}

func newMapSource(ids ...string) *mapSource {
	s := &mapSource{data: map[string]ExportData{}}
	for i, id := range ids {
		d := sampleExportData()
		d.Quotation.ID = id
		d.Quotation.QuotationNo = fmt.Sprintf("WP-%03d", i+1)
		s.data[id] = d
	}
	return s
}

func (s *mapSource) Fetch(ctx context.Context, id string) (ExportData, error) {
	s.fetches.Add(1)
	d, ok := s.data[id]
	if !ok {
		return ExportData{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// newTestExporter wires an Exporter over the fakes.
func newTestExporter(src QuotationSource, eng Engine) *Exporter {
	return NewExporter(ExporterConfig{
		Source:  src,
		Engine:  eng,
		Company: testCompany,
		BaseURL: "https://quotes.example.com",
	})
}
