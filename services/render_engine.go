package services

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Engine is the boundary to an out-of-process HTML renderer. Each Acquire
// returns a fresh, exclusively owned Surface.
type Engine interface {
	Acquire(ctx context.Context) (Surface, error)
}

// Surface is one live rendering-engine instance.
//
// Load returns only after the document has settled: no network requests in
// flight and all fonts loaded. Close releases the instance and must be safe
// to call more than once.
type Surface interface {
	Load(ctx context.Context, html string) error
	PrintPDF(ctx context.Context, layout PageLayout) ([]byte, error)
	Capture(ctx context.Context, viewport Viewport) ([]byte, error)
	Close() error
}

// PageLayout is the paged-output geometry, in millimetres.
type PageLayout struct {
	WidthMM, HeightMM float64
	Landscape         bool
	MarginTopMM       float64
	MarginBottomMM    float64
	MarginLeftMM      float64
	MarginRightMM     float64
	HeaderHTML        string // empty disables header/footer bands
	FooterHTML        string
}

// Viewport is the raster capture surface, in CSS pixels. With FullPage set
// the capture extends past Height to the whole document.
type Viewport struct {
	Width, Height int
	Scale         float64
	Transparent   bool
	FullPage      bool
}

// withSurface acquires a surface, runs fn and closes the surface on every
// exit path. Engine errors are classified as timeout or process failures.
func withSurface(ctx context.Context, engine Engine, fn func(context.Context, Surface) error) (err error) {
	surface, err := engine.Acquire(ctx)
	if err != nil {
		return classifyRenderError(ctx, fmt.Errorf("acquire engine: %w", err))
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			log.Printf("render: closing engine: %v", cerr)
		}
		if r := recover(); r != nil {
			err = &ExportError{Kind: ErrRenderProcess, Stage: StageRender, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return classifyRenderError(ctx, fn(ctx, surface))
}

// classifyRenderError maps a raw engine error onto the export error kinds.
// A reached deadline is always a timeout; anything else is a process error.
func classifyRenderError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExportError{Kind: ErrRenderTimeout, Stage: StageRender, Err: err}
	}
	return &ExportError{Kind: ErrRenderProcess, Stage: StageRender, Err: err}
}

// pxPerMM converts millimetres to CSS pixels at 96 dpi.
const pxPerMM = 96.0 / 25.4

func mmToPx(v float64) int {
	return int(v*pxPerMM + 0.5)
}
