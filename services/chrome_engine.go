package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	defaultSettleQuiet = 500 * time.Millisecond
	settlePoll         = 50 * time.Millisecond
)

// ChromeEngine launches one headless Chrome process per Acquire.
type ChromeEngine struct {
	ExecPath    string        // empty uses the chromedp lookup
	SettleQuiet time.Duration // network silence required before a load counts as settled
}

// NewChromeEngine returns an engine using the given Chrome binary.
func NewChromeEngine(execPath string, settleQuiet time.Duration) *ChromeEngine {
	if settleQuiet <= 0 {
		settleQuiet = defaultSettleQuiet
	}
	return &ChromeEngine{ExecPath: execPath, SettleQuiet: settleQuiet}
}

// Acquire starts a browser. The browser lives until Close, independent of
// ctx; ctx only bounds the start-up.
func (e *ChromeEngine) Acquire(ctx context.Context) (Surface, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if e.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSurface{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		quiet:       e.SettleQuiet,
	}
	if s.quiet <= 0 {
		s.quiet = defaultSettleQuiet
	}

	chromedp.ListenTarget(tabCtx, s.net.observe)

	// The first Run allocates the browser and ties its lifetime to the
	// context it is given, so it must run on tabCtx itself.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err == nil {
		err = s.run(ctx, network.Enable())
	}
	if err != nil {
		_ = s.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("start chrome: %w: %v", ctx.Err(), err)
		}
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return s, nil
}

type chromeSurface struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	quiet       time.Duration
	net         netTracker

	closeOnce sync.Once
	closeErr  error
}

// run executes actions in the browser tab while honouring ctx's deadline
// and cancellation.
func (s *chromeSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

func (s *chromeSurface) Load(ctx context.Context, html string) error {
	s.net.reset()
	return s.run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(s.waitSettled),
	)
}

// waitSettled blocks until fonts are loaded, the document is complete and
// the network has been silent for the quiet period.
func (s *chromeSurface) waitSettled(ctx context.Context) error {
	var fontsReady bool
	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}
	if err := chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady, awaitPromise).Do(ctx); err != nil {
		return fmt.Errorf("wait for fonts: %w", err)
	}

	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for {
		var state string
		if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
			return fmt.Errorf("ready state: %w", err)
		}
		if state == "complete" && s.net.idleFor(s.quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *chromeSurface) PrintPDF(ctx context.Context, layout PageLayout) ([]byte, error) {
	var data []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := page.PrintToPDF().
			WithPaperWidth(mmToInch(layout.WidthMM)).
			WithPaperHeight(mmToInch(layout.HeightMM)).
			WithMarginTop(mmToInch(layout.MarginTopMM)).
			WithMarginBottom(mmToInch(layout.MarginBottomMM)).
			WithMarginLeft(mmToInch(layout.MarginLeftMM)).
			WithMarginRight(mmToInch(layout.MarginRightMM)).
			WithPrintBackground(true)
		if layout.HeaderHTML != "" || layout.FooterHTML != "" {
			p = p.WithDisplayHeaderFooter(true).
				WithHeaderTemplate(orEmptySpan(layout.HeaderHTML)).
				WithFooterTemplate(orEmptySpan(layout.FooterHTML))
		}
		var err error
		data, _, err = p.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return data, nil
}

func (s *chromeSurface) Capture(ctx context.Context, vp Viewport) ([]byte, error) {
	var buf []byte
	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), vp.Scale, false),
	}
	if vp.Transparent {
		actions = append(actions,
			emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}))
	}
	if vp.FullPage {
		actions = append(actions, chromedp.FullScreenshot(&buf, 100))
	} else {
		actions = append(actions, chromedp.CaptureScreenshot(&buf))
	}
	if err := s.run(ctx, actions...); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down. Later calls return the first result.
func (s *chromeSurface) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.tabCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// netTracker counts in-flight requests and remembers the last activity.
type netTracker struct {
	mu       sync.Mutex
	inflight int
	last     time.Time
}

func (n *netTracker) observe(ev any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		n.inflight++
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		if n.inflight > 0 {
			n.inflight--
		}
	default:
		return
	}
	n.last = time.Now()
}

func (n *netTracker) reset() {
	n.mu.Lock()
	n.inflight = 0
	n.last = time.Now()
	n.mu.Unlock()
}

func (n *netTracker) idleFor(quiet time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inflight == 0 && time.Since(n.last) >= quiet
}

func mmToInch(v float64) float64 {
	return v / 25.4
}

// Chrome substitutes its own date/title band for an empty template.
func orEmptySpan(s string) string {
	if s == "" {
		return "<span></span>"
	}
	return s
}
