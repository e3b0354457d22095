package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	xwebp "golang.org/x/image/webp"
)

func TestImageRenderer_Formats(t *testing.T) {
	tests := []struct {
		format string
		mime   string
	}{
		{"png", "image/png"},
		{"jpeg", "image/jpeg"},
		{"webp", "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			eng := newFakeEngine(t)
			s := ResolveSettings(map[string]any{"imageFormat": tt.format, "imageWidth": 800}).Settings

			out, err := NewImageRenderer(eng).Render(context.Background(), testHTML, s)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got := mimetype.Detect(out); !got.Is(tt.mime) {
				t.Errorf("output sniffed as %s, want %s", got, tt.mime)
			}
			if eng.leaked() != 0 {
				t.Errorf("%d engine instances leaked", eng.leaked())
			}
		})
	}
}

func TestImageRenderer_WebPDecodes(t *testing.T) {
	eng := newFakeEngine(t)
	s := ResolveSettings(map[string]any{"imageFormat": "webp", "imageWidth": 1000}).Settings

	out, err := NewImageRenderer(eng).Render(context.Background(), testHTML, s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := xwebp.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode webp: %v", err)
	}
	if img.Bounds().Dx() != 1000 {
		t.Errorf("width = %d, want 1000", img.Bounds().Dx())
	}
}

func TestImageRenderer_ReleasesOnFailure(t *testing.T) {
	eng := newFakeEngine(t)
	eng.loadErr = errEngineClosed

	_, err := NewImageRenderer(eng).Render(context.Background(), testHTML, DefaultSettings())
	if !errors.Is(err, ErrRenderProcess) {
		t.Errorf("err = %v, want ErrRenderProcess", err)
	}
	if eng.leaked() != 0 {
		t.Errorf("%d engine instances leaked", eng.leaked())
	}
}

func TestCaptureViewport(t *testing.T) {
	s := ResolveSettings(map[string]any{"paperSize": "A4", "highDPI": true}).Settings
	vp := CaptureViewport(s)
	if vp.Width != 794 || vp.Height != 1123 {
		t.Errorf("viewport = %dx%d, want 794x1123", vp.Width, vp.Height)
	}
	if vp.Scale != 3 {
		t.Errorf("scale = %v, want 3", vp.Scale)
	}

	s = ResolveSettings(map[string]any{"paperSize": "A4", "orientation": "landscape"}).Settings
	vp = CaptureViewport(s)
	if vp.Width != 1123 || vp.Height != 794 || vp.Scale != 2 {
		t.Errorf("landscape viewport = %+v", vp)
	}
}

func TestPostProcessImage_Dimensions(t *testing.T) {
	shot := samplePNG(t, 400, 600)

	tests := []struct {
		name  string
		raw   map[string]any
		wantW int
		wantH int
	}{
		{"width only keeps aspect", map[string]any{"imageWidth": 800}, 800, 1200},
		{"fixed height crops", map[string]any{"imageWidth": 800, "imageHeight": 400}, 800, 400},
		{"filters", map[string]any{"imageWidth": 800, "sharpen": true, "normalize": true}, 800, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ResolveSettings(tt.raw).Settings
			out, err := PostProcessImage(shot, s)
			if err != nil {
				t.Fatalf("PostProcessImage: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("size = %v, want %dx%d", img.Bounds().Size(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPostProcessImage_Transparency(t *testing.T) {
	blank := image.NewNRGBA(image.Rect(0, 0, 800, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		t.Fatal(err)
	}

	opaque, err := PostProcessImage(buf.Bytes(), ResolveSettings(map[string]any{"imageWidth": 800}).Settings)
	if err != nil {
		t.Fatalf("PostProcessImage: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(opaque))
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0xffff {
		t.Errorf("alpha = %d, want opaque background", a)
	}

	kept, err := PostProcessImage(buf.Bytes(), ResolveSettings(map[string]any{"imageWidth": 800, "transparentBackground": true}).Settings)
	if err != nil {
		t.Fatalf("PostProcessImage: %v", err)
	}
	img, _ = png.Decode(bytes.NewReader(kept))
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("alpha = %d, want transparent background", a)
	}
}

func TestPostProcessImage_RejectsGarbage(t *testing.T) {
	if _, err := PostProcessImage([]byte("not a png"), DefaultSettings()); err == nil {
		t.Error("expected a decode error")
	}
}
