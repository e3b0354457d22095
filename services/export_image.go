package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
)

// ImageRenderer captures an HTML document as a raster image.
type ImageRenderer struct {
	Engine Engine
}

// NewImageRenderer returns a renderer that acquires one engine per call.
func NewImageRenderer(engine Engine) *ImageRenderer {
	return &ImageRenderer{Engine: engine}
}

// Render captures html at the paper size in s and encodes it as
// s.ImageFormat. The engine is released before Render returns.
func (r *ImageRenderer) Render(ctx context.Context, html string, s ExportSettings) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RenderTimeout())
	defer cancel()

	vp := CaptureViewport(s)
	var shot []byte
	err := withSurface(ctx, r.Engine, func(ctx context.Context, sf Surface) error {
		if err := sf.Load(ctx, html); err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		b, err := sf.Capture(ctx, vp)
		if err != nil {
			return err
		}
		shot = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return PostProcessImage(shot, s)
}

// CaptureViewport sizes the capture surface from the paper size and
// orientation at 96 dpi, scaled by the DPI multiplier.
func CaptureViewport(s ExportSettings) Viewport {
	w, h := s.PaperMM()
	return Viewport{
		Width:       mmToPx(w),
		Height:      mmToPx(h),
		Scale:       s.DPIMultiplier(),
		Transparent: s.TransparentBackground,
		FullPage:    true,
	}
}

// PostProcessImage resizes the captured PNG to the requested dimensions,
// applies the optional filters and re-encodes it.
func PostProcessImage(shot []byte, s ExportSettings) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}

	var img image.Image = src
	switch {
	case s.ImageHeight > 0:
		img = imaging.Fill(img, s.ImageWidth, s.ImageHeight, imaging.Top, imaging.Lanczos)
	case s.ImageWidth > 0 && src.Bounds().Dx() != s.ImageWidth:
		img = imaging.Resize(img, s.ImageWidth, 0, imaging.Lanczos)
	}
	if s.Normalize {
		img = stretchContrast(img)
	}
	if s.Sharpen {
		img = imaging.Sharpen(img, 1)
	}
	if !s.TransparentBackground {
		img = flatten(img, color.White)
	}

	var buf bytes.Buffer
	switch s.ImageFormat {
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.ImageQuality))
	case FormatWebP:
		err = webp.Encode(&buf, img, webp.Options{Quality: s.ImageQuality})
	default:
		enc := png.Encoder{CompressionLevel: pngLevel(s.PNGCompression)}
		err = enc.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.ImageFormat, err)
	}
	return buf.Bytes(), nil
}

// pngLevel maps a 0-9 compression setting onto the encoder's levels.
func pngLevel(n int) png.CompressionLevel {
	switch {
	case n <= 0:
		return png.NoCompression
	case n <= 3:
		return png.BestSpeed
	case n <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// flatten composites img over a solid background.
func flatten(img image.Image, bg color.Color) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1)
}

// stretchContrast spreads the luminance range of img over the full 0-255
// scale. Images that are already full range are returned unchanged.
func stretchContrast(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	lo, hi := uint8(255), uint8(0)
	for i := 0; i+3 < len(src.Pix); i += 4 {
		if src.Pix[i+3] == 0 {
			continue
		}
		y := luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		lo = min(lo, y)
		hi = max(hi, y)
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return src
	}
	scale := 255 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		f := (float64(v) - float64(lo)) * scale
		return uint8(max(0, min(255, f+0.5)))
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

func luminance(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}
