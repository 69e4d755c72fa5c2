package printing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/printing"
)

const (
	defaultChromeTimeout = 30 * time.Second
	// viewportHeightPx is the initial tab height. Screenshots capture beyond it.
	viewportHeightPx = 1123
)

// ChromedpConfig contains configuration for the headless browser
type ChromedpConfig struct {
	// DefaultTimeout bounds browser start and native printing
	DefaultTimeout time.Duration
	// RemoteURL is the devtools websocket of a running Chrome (optional).
	// If empty, a local browser is launched.
	RemoteURL string
	// Headless mode
	Headless bool
	// DisableGPU disables GPU hardware acceleration
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// Browser is one shared Chrome instance. Tabs opened from it are independent,
// so concurrent renders never share a page.
type Browser struct {
	config *ChromedpConfig
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// NewBrowser prepares the allocator. The browser itself starts on first use.
func NewBrowser(config *ChromedpConfig) *Browser {
	if config == nil {
		config = &ChromedpConfig{Headless: true, DisableGPU: true}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Browser{config: config, logger: logger}
	b.initAllocator()
	return b
}

// initAllocator initializes the Chrome allocator
func (b *Browser) initAllocator() {
	if b.config.RemoteURL != "" {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", b.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if b.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

func (b *Browser) start() error {
	b.startOnce.Do(func() {
		b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx,
			chromedp.WithLogf(func(format string, args ...any) {
				b.logger.Debug(fmt.Sprintf(format, args...))
			}),
		)
		// The browser lives as long as the context of its first Run, so no
		// timeout is derived here.
		if err := chromedp.Run(b.browserCtx); err != nil {
			b.startErr = err
			b.logger.Error("failed to start headless browser", zap.Error(err))
			return
		}
		b.logger.Info("headless browser started", zap.Bool("remote", b.config.RemoteURL != ""))
	})
	return b.startErr
}

// newTab opens a new tab. The returned cancel closes it.
func (b *Browser) newTab() (context.Context, context.CancelFunc, error) {
	if err := b.start(); err != nil {
		return nil, nil, NewRenderError(ErrCodeBrowserUnavailable, "headless browser is unavailable", err)
	}
	ctx, cancel := chromedp.NewContext(b.browserCtx)
	return ctx, cancel, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

// setContent replaces the document of the tab's main frame.
func setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
	})
}

// runBound runs actions in tabCtx and aborts them when ctx ends.
func runBound(ctx, tabCtx context.Context, cancelTab context.CancelFunc, actions ...chromedp.Action) error {
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	return chromedp.Run(tabCtx, actions...)
}

// ChromedpHost is an OffscreenHost backed by browser tabs, one tab per container.
type ChromedpHost struct {
	browser  *Browser
	attached atomic.Int64
}

// NewChromedpHost creates a host on a shared browser.
func NewChromedpHost(browser *Browser) *ChromedpHost {
	return &ChromedpHost{browser: browser}
}

// Attach opens a tab at the given CSS width and loads html into it.
func (h *ChromedpHost) Attach(ctx context.Context, html string, widthPx int) (Offscreen, error) {
	if strings.TrimSpace(html) == "" {
		return nil, NewRenderError(ErrCodeTemplateFailed, "HTML content is empty", nil)
	}
	tabCtx, cancel, err := h.browser.newTab()
	if err != nil {
		return nil, err
	}

	err = runBound(ctx, tabCtx, cancel,
		emulation.SetDeviceMetricsOverride(int64(widthPx), viewportHeightPx, 1, false),
		chromedp.Navigate("about:blank"),
		setContent(html),
	)
	if err != nil {
		cancel()
		return nil, timeoutOr(ctx, ErrCodeBrowserUnavailable, "failed to attach off-screen container", err)
	}

	h.attached.Add(1)
	return &chromeContainer{host: h, ctx: tabCtx, cancel: cancel, widthPx: widthPx}, nil
}

// Attached returns the number of open containers.
func (h *ChromedpHost) Attached() int {
	return int(h.attached.Load())
}

type chromeContainer struct {
	host    *ChromedpHost
	ctx     context.Context
	cancel  context.CancelFunc
	widthPx int
	once    sync.Once
}

// Rasterize captures the whole document as JPEG at scale device pixels per CSS pixel.
func (c *chromeContainer) Rasterize(ctx context.Context, scale float64, quality int) (Raster, error) {
	var buf []byte
	err := runBound(ctx, c.ctx, c.cancel,
		emulation.SetDeviceMetricsOverride(int64(c.widthPx), viewportHeightPx, scale, false),
		chromedp.FullScreenshot(&buf, quality),
	)
	if err != nil {
		return Raster{}, timeoutOr(ctx, ErrCodeRasterizeFailed, "failed to rasterize container", err)
	}
	if len(buf) == 0 {
		return Raster{}, NewRenderError(ErrCodeRasterizeFailed, "rasterized image is empty", nil)
	}
	return Raster{Data: buf}, nil
}

// Detach closes the tab.
func (c *chromeContainer) Detach() {
	c.once.Do(func() {
		c.cancel()
		c.host.attached.Add(-1)
	})
}

// ChromedpRenderer prints HTML to PDF with the browser's own pagination.
type ChromedpRenderer struct {
	browser *Browser
	timeout time.Duration
	logger  *zap.Logger
}

// NewChromedpRenderer creates a native print renderer on a shared browser.
func NewChromedpRenderer(browser *Browser) *ChromedpRenderer {
	return &ChromedpRenderer{
		browser: browser,
		timeout: browser.config.DefaultTimeout,
		logger:  browser.logger,
	}
}

// Print renders html to PDF on the given page geometry and returns the PDF
// and its page count.
func (r *ChromedpRenderer) Print(ctx context.Context, html string, geometry printing.PageGeometry) ([]byte, int, error) {
	if strings.TrimSpace(html) == "" {
		return nil, 0, NewRenderError(ErrCodeTemplateFailed, "HTML content is empty", nil)
	}
	if err := geometry.Validate(); err != nil {
		return nil, 0, NewRenderError(ErrCodeInvalidDocument, "invalid page geometry", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tabCtx, closeTab, err := r.browser.newTab()
	if err != nil {
		return nil, 0, err
	}
	defer closeTab()

	width, height := geometry.PageSize()
	var pdfData []byte
	err = runBound(ctx, tabCtx, closeTab,
		chromedp.Navigate("about:blank"),
		setContent(html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(width)).
				WithPaperHeight(mmToInches(height)).
				WithMarginTop(mmToInches(geometry.Margins.Top)).
				WithMarginRight(mmToInches(geometry.Margins.Right)).
				WithMarginBottom(mmToInches(geometry.Margins.Bottom)).
				WithMarginLeft(mmToInches(geometry.Margins.Left)).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		return nil, 0, timeoutOr(ctx, ErrCodePDFWriteFailed, "browser print failed", err)
	}
	if len(pdfData) == 0 {
		return nil, 0, NewRenderError(ErrCodePDFWriteFailed, "generated PDF is empty", nil)
	}

	pages, err := CountPages(pdfData)
	if err != nil {
		return nil, 0, err
	}
	r.logger.Debug("browser print finished", zap.Int("bytes", len(pdfData)), zap.Int("pages", pages))
	return pdfData, pages, nil
}

// CountPages reads the page count of a PDF.
func CountPages(pdfData []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdfData), nil)
	if err != nil {
		return 0, NewRenderError(ErrCodePDFWriteFailed, "generated PDF is unreadable", err)
	}
	return n, nil
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ OffscreenHost = (*ChromedpHost)(nil)
