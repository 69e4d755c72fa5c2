package printing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/infrastructure/telemetry"
)

// DefaultRenderTimeout bounds one render when no timeout is configured.
const DefaultRenderTimeout = 60 * time.Second

// Printer prints a complete HTML document with the browser's own paginator.
type Printer interface {
	Print(ctx context.Context, html string, geometry printing.PageGeometry) ([]byte, int, error)
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	DefaultStrategy printing.Strategy
	// Timeout bounds a whole render, all pages included
	Timeout time.Duration
	// FileNameDateSuffix appends the document date to generated file names
	FileNameDateSuffix bool
}

// RenderOptions are the per-request choices.
type RenderOptions struct {
	Strategy  printing.Strategy
	BrandCode string
}

// RenderResult is a finished PDF.
type RenderResult struct {
	PDFData   []byte
	PageCount int
	FileName  string
	Brand     Brand
	Strategy  printing.Strategy
	Phase     Phase
	Duration  time.Duration
}

// PreviewResult holds the assembled HTML pages without rendering them.
type PreviewResult struct {
	Pages []Page
	Brand Brand
}

// Renderer turns documents into PDFs with one of the pagination strategies.
// Raster and print strategies need a browser; without one only the vector
// strategy is available.
type Renderer struct {
	assembler *Assembler
	brands    BrandStrategy
	raster    *RasterPaginator
	vector    *VectorPaginator
	printer   Printer
	config    RendererConfig
	logger    *zap.Logger
}

// RendererOption configures optional Renderer collaborators.
type RendererOption func(*Renderer)

// WithRaster enables the raster strategy.
func WithRaster(p *RasterPaginator) RendererOption {
	return func(r *Renderer) { r.raster = p }
}

// WithPrinter enables the print strategy.
func WithPrinter(p Printer) RendererOption {
	return func(r *Renderer) { r.printer = p }
}

// WithLogger sets the renderer logger.
func WithLogger(l *zap.Logger) RendererOption {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a renderer. The vector paginator is always available.
func NewRenderer(assembler *Assembler, brands BrandStrategy, vector *VectorPaginator, config RendererConfig, opts ...RendererOption) *Renderer {
	if config.DefaultStrategy == "" {
		config.DefaultStrategy = printing.StrategyVector
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRenderTimeout
	}
	r := &Renderer{
		assembler: assembler,
		brands:    brands,
		vector:    vector,
		config:    config,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultStrategy returns the strategy used when a request names none.
func (r *Renderer) DefaultStrategy() printing.Strategy {
	return r.config.DefaultStrategy
}

// Supports reports whether the strategy can be served by this renderer.
func (r *Renderer) Supports(s printing.Strategy) bool {
	switch s {
	case printing.StrategyVector:
		return r.vector != nil
	case printing.StrategyRaster:
		return r.raster != nil
	case printing.StrategyPrint:
		return r.printer != nil
	}
	return false
}

// ResolveStrategy returns the requested strategy or the default one.
func (r *Renderer) ResolveStrategy(s printing.Strategy) (printing.Strategy, error) {
	if s == "" {
		s = r.config.DefaultStrategy
	}
	if !s.IsValid() {
		return "", NewRenderError(ErrCodeInvalidDocument, fmt.Sprintf("unknown strategy %q", s), nil)
	}
	if !r.Supports(s) {
		return "", NewRenderError(ErrCodeBrowserUnavailable, fmt.Sprintf("strategy %s is not available", s), nil)
	}
	return s, nil
}

// SelectBrand resolves the letterhead for doc.
func (r *Renderer) SelectBrand(doc *document.Document, code string) (Brand, error) {
	if err := doc.Validate(); err != nil {
		return Brand{}, err
	}
	return r.brands.Select(doc.Kind, code)
}

// FileName returns the download name for doc.
func (r *Renderer) FileName(doc *document.Document) string {
	return document.FileName(doc, r.config.FileNameDateSuffix)
}

// Preview assembles the HTML pages for doc.
func (r *Renderer) Preview(doc *document.Document, brandCode string) (*PreviewResult, error) {
	brand, err := r.SelectBrand(doc, brandCode)
	if err != nil {
		return nil, err
	}
	pages, err := r.assembler.Assemble(doc, brand)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Pages: pages, Brand: brand}, nil
}

// Render produces the PDF for doc. Any failure is returned as an error and
// no partial PDF is handed back.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, opts RenderOptions) (*RenderResult, error) {
	start := time.Now()

	strategy, err := r.ResolveStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	brand, err := r.SelectBrand(doc, opts.BrandCode)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	vm := r.assembler.BuildViewModel(doc, brand)

	var result *PaginationResult
	telemetry.WithRenderLabels(ctx, telemetry.RenderLabels{
		Operation:    "render",
		DocumentKind: doc.Kind.String(),
		Strategy:     strategy.String(),
		Brand:        brand.Code,
	}, func(ctx context.Context) {
		result, err = r.paginate(ctx, strategy, vm)
	})
	if err != nil {
		r.logger.Debug("render failed",
			zap.String("document_kind", doc.Kind.String()),
			zap.String("document_number", doc.Number()),
			zap.String("strategy", strategy.String()),
			zap.String("brand", brand.Code),
			zap.String("error_code", ErrorCode(err)),
			zap.Error(err),
		)
		return nil, err
	}

	out := &RenderResult{
		PDFData:   result.PDFData,
		PageCount: result.PageCount,
		FileName:  r.FileName(doc),
		Brand:     brand,
		Strategy:  strategy,
		Phase:     result.Phase,
		Duration:  time.Since(start),
	}
	r.logger.Info("document rendered",
		zap.String("document_kind", doc.Kind.String()),
		zap.String("file_name", out.FileName),
		zap.String("strategy", strategy.String()),
		zap.Int("pages", out.PageCount),
		zap.Int("bytes", len(out.PDFData)),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}

func (r *Renderer) paginate(ctx context.Context, strategy printing.Strategy, vm ViewModel) (*PaginationResult, error) {
	switch strategy {
	case printing.StrategyRaster:
		pages, err := r.assembler.AssembleViewModel(vm)
		if err != nil {
			return nil, err
		}
		return r.raster.Paginate(ctx, pages)
	case printing.StrategyPrint:
		return r.print(ctx, vm)
	default:
		return r.vector.Paginate(ctx, vm)
	}
}

func (r *Renderer) print(ctx context.Context, vm ViewModel) (*PaginationResult, error) {
	tracker := NewTracker()
	if err := tracker.Start(); err != nil {
		return nil, err
	}
	html, err := r.assembler.AssembleDocument(vm)
	if err != nil {
		_ = tracker.Fail(err)
		return nil, err
	}
	data, pages, err := r.printer.Print(ctx, html, r.assembler.Geometry())
	if err != nil {
		err = asRenderError(ctx, ErrCodePDFWriteFailed, "browser print failed", err)
		_ = tracker.Fail(err)
		return nil, err
	}
	for tracker.Page() < pages {
		if _, err := tracker.AddPage(); err != nil {
			return nil, err
		}
	}
	if err := tracker.Complete(); err != nil {
		return nil, err
	}
	return &PaginationResult{PDFData: data, PageCount: pages, Phase: tracker.Phase()}, nil
}
