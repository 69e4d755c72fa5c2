package printing

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/infrastructure/config"
)

// Stack is a configured renderer together with the browser it drives.
type Stack struct {
	Renderer *Renderer
	Brands   *BrandSet
	// Host is nil when the browser is disabled.
	Host *ChromedpHost

	browser *Browser
}

// GeometryFromConfig builds the page geometry from renderer settings.
func GeometryFromConfig(cfg config.RendererConfig) (printing.PageGeometry, error) {
	geometry := printing.DefaultPageGeometry()
	if cfg.PaperSize != "" {
		geometry.PaperSize = printing.PaperSize(strings.ToUpper(cfg.PaperSize))
	}
	if cfg.MarginMM > 0 {
		margins, err := printing.UniformMargins(cfg.MarginMM)
		if err != nil {
			return printing.PageGeometry{}, err
		}
		geometry.Margins = margins
	}
	if err := geometry.Validate(); err != nil {
		return printing.PageGeometry{}, err
	}
	return geometry, nil
}

// NewStack wires templates, brands, paginators and, when enabled, the headless
// browser behind the raster and print strategies.
func NewStack(cfg config.RendererConfig, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	geometry, err := GeometryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid page geometry: %w", err)
	}

	brands, err := LoadBrands(cfg.BrandsFile)
	if err != nil {
		return nil, err
	}
	if err := brands.SetDefault(cfg.DefaultBrand); err != nil {
		return nil, err
	}

	engine, err := NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	assembler := NewAssembler(engine, WithGeometry(geometry))

	vector := NewVectorPaginator(VectorConfig{
		Geometry:     geometry,
		FooterMargin: cfg.FooterMarginMM,
	}, logger.Named("vector"))

	strategy := printing.Strategy(strings.ToUpper(cfg.DefaultStrategy))
	if strategy == "" {
		strategy = printing.StrategyRaster
	}

	stack := &Stack{Brands: brands}
	opts := []RendererOption{WithLogger(logger)}
	if cfg.BrowserEnabled {
		stack.browser = NewBrowser(&ChromedpConfig{
			DefaultTimeout: cfg.Timeout,
			RemoteURL:      cfg.ChromeRemoteURL,
			Headless:       cfg.ChromeHeadless,
			DisableGPU:     cfg.ChromeDisableGPU,
			NoSandbox:      cfg.ChromeNoSandbox,
			Logger:         logger.Named("chrome"),
		})
		stack.Host = NewChromedpHost(stack.browser)
		raster := NewRasterPaginator(stack.Host, RasterConfig{
			Geometry:    geometry,
			Scale:       cfg.ScaleFactor,
			JPEGQuality: cfg.JPEGQuality,
			LayoutDelay: cfg.LayoutDelay,
		}, logger.Named("raster"))
		opts = append(opts, WithRaster(raster), WithPrinter(NewChromedpRenderer(stack.browser)))
	} else if strategy != printing.StrategyVector {
		logger.Warn("browser disabled, falling back to vector strategy",
			zap.String("configured_strategy", strategy.String()))
		strategy = printing.StrategyVector
	}

	stack.Renderer = NewRenderer(assembler, brands, vector, RendererConfig{
		DefaultStrategy:    strategy,
		Timeout:            cfg.Timeout,
		FileNameDateSuffix: cfg.FilenameDateSuffix,
	}, opts...)
	return stack, nil
}

// Attached reports the number of live off-screen containers.
func (s *Stack) Attached() int {
	if s.Host == nil {
		return 0
	}
	return s.Host.Attached()
}

// Close shuts the browser down if one was started.
func (s *Stack) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}
