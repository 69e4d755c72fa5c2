package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder for image.DecodeConfig
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/printing"
)

// Raster defaults.
const (
	DefaultRasterScale  = 2.0
	DefaultJPEGQuality  = 92
	DefaultLayoutDelay  = 150 * time.Millisecond
	sliceToleranceMM    = 1e-6
	rasterImageTypeJPEG = "JPEG"
)

// RasterConfig configures a RasterPaginator.
type RasterConfig struct {
	Geometry    printing.PageGeometry
	Scale       float64
	JPEGQuality int
	LayoutDelay time.Duration
}

// PaginationResult is the PDF produced by a paginator.
type PaginationResult struct {
	PDFData   []byte
	PageCount int
	Phase     Phase
}

// RasterPaginator renders each HTML page in an off-screen container, turns it
// into an image and slices the image across as many PDF pages as it needs.
type RasterPaginator struct {
	host   OffscreenHost
	config RasterConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRasterPaginator creates a raster paginator on host.
func NewRasterPaginator(host OffscreenHost, config RasterConfig, logger *zap.Logger) *RasterPaginator {
	if config.Geometry.PaperSize == "" {
		config.Geometry = printing.DefaultPageGeometry()
	}
	if config.Scale <= 0 {
		config.Scale = DefaultRasterScale
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = DefaultJPEGQuality
	}
	if config.LayoutDelay < 0 {
		config.LayoutDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RasterPaginator{host: host, config: config, logger: logger, now: time.Now}
}

// SliceOffsets returns the vertical offset, in the same unit as its inputs, of
// every page an image of imageHeight occupies when each page shows
// printableHeight of it. An image exactly one page tall yields one offset.
func SliceOffsets(imageHeight, printableHeight float64) []float64 {
	offsets := []float64{0}
	if printableHeight <= 0 {
		return offsets
	}
	heightLeft := imageHeight - printableHeight
	for heightLeft > sliceToleranceMM {
		offsets = append(offsets, offsets[len(offsets)-1]+printableHeight)
		heightLeft -= printableHeight
	}
	return offsets
}

// Paginate renders pages in order. Containers are always detached, and on
// failure no PDF is returned.
func (p *RasterPaginator) Paginate(ctx context.Context, pages []Page) (*PaginationResult, error) {
	tracker := NewTracker()
	if err := tracker.Start(); err != nil {
		return nil, err
	}
	result, err := p.paginate(ctx, pages, tracker)
	if err != nil {
		_ = tracker.Fail(err)
		return nil, err
	}
	if err := tracker.Complete(); err != nil {
		return nil, err
	}
	result.Phase = tracker.Phase()
	return result, nil
}

func (p *RasterPaginator) paginate(ctx context.Context, pages []Page, tracker *Tracker) (*PaginationResult, error) {
	if len(pages) == 0 {
		return nil, NewRenderError(ErrCodeTemplateFailed, "nothing to render", nil)
	}

	g := p.config.Geometry
	pageW, pageH := g.PageSize()
	printableW, printableH := g.PrintableWidth(), g.PrintableHeight()
	widthPx := int(printableW*CSSPixelsPerMM + 0.5)

	pdf := newPDF(pageW, pageH, g.Margins, p.now())

	for _, page := range pages {
		raster, err := p.rasterize(ctx, page, widthPx)
		if err != nil {
			return nil, err
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(raster.Data))
		if err != nil {
			return nil, NewRenderError(ErrCodeImageDecodeFailed, fmt.Sprintf("page %d image cannot be decoded", page.Index+1), err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, NewRenderError(ErrCodeImageDecodeFailed, fmt.Sprintf("page %d image is empty", page.Index+1), nil)
		}
		imageH := float64(cfg.Height) * printableW / float64(cfg.Width)

		name := fmt.Sprintf("page-%d", page.Index)
		opts := fpdf.ImageOptions{ImageType: rasterImageTypeJPEG}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raster.Data))
		if pdf.Err() {
			return nil, NewRenderError(ErrCodeImageDecodeFailed, "failed to embed page image", pdf.Error())
		}

		for _, offset := range SliceOffsets(imageH, printableH) {
			if pdf.PageNo() > 0 {
				if _, err := tracker.AddPage(); err != nil {
					return nil, err
				}
			}
			pdf.AddPage()
			pdf.ClipRect(g.Margins.Left, g.Margins.Top, printableW, printableH, false)
			pdf.ImageOptions(name, g.Margins.Left, g.Margins.Top-offset, printableW, imageH, false, opts, 0, "")
			pdf.ClipEnd()
		}
		p.logger.Debug("raster page placed",
			zap.Int("page", page.Index+1),
			zap.Int("image_width_px", cfg.Width),
			zap.Int("image_height_px", cfg.Height),
			zap.Float64("image_height_mm", imageH),
		)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, NewRenderError(ErrCodePDFWriteFailed, "failed to write PDF", err)
	}
	return &PaginationResult{PDFData: buf.Bytes(), PageCount: tracker.Page()}, nil
}

// rasterize attaches one page, waits for layout and captures it. The
// container is detached before returning, whatever the outcome.
func (p *RasterPaginator) rasterize(ctx context.Context, page Page, widthPx int) (Raster, error) {
	container, err := p.host.Attach(ctx, page.HTML, widthPx)
	if err != nil {
		return Raster{}, asRenderError(ctx, ErrCodeBrowserUnavailable, "failed to attach page", err)
	}
	defer container.Detach()

	if err := sleepContext(ctx, p.config.LayoutDelay); err != nil {
		return Raster{}, timeoutOr(ctx, ErrCodeRenderTimeout, "layout wait interrupted", err)
	}

	raster, err := container.Rasterize(ctx, p.config.Scale, p.config.JPEGQuality)
	if err != nil {
		return Raster{}, asRenderError(ctx, ErrCodeRasterizeFailed, "failed to rasterize page", err)
	}
	return raster, nil
}

// newPDF creates an empty document with fixed metadata dates so identical
// input produces identical bytes.
func newPDF(pageW, pageH float64, margins printing.Margins, now time.Time) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(margins.Left, margins.Top, margins.Right)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("docrender", false)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	return pdf
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// asRenderError keeps an existing RenderError and wraps anything else.
func asRenderError(ctx context.Context, code, message string, err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return timeoutOr(ctx, code, message, err)
}
