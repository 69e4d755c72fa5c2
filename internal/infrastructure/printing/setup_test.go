package printing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/infrastructure/config"
)

func TestGeometryFromConfig(t *testing.T) {
	g, err := GeometryFromConfig(config.RendererConfig{PaperSize: "letter", MarginMM: 12})
	require.NoError(t, err)
	assert.Equal(t, printing.PaperSizeLetter, g.PaperSize)
	assert.Equal(t, 12.0, g.Margins.Left)

	g, err = GeometryFromConfig(config.RendererConfig{})
	require.NoError(t, err)
	assert.Equal(t, printing.DefaultPageGeometry(), g)

	_, err = GeometryFromConfig(config.RendererConfig{PaperSize: "B5"})
	require.Error(t, err)
}

func TestNewStack_VectorOnly(t *testing.T) {
	stack, err := NewStack(config.RendererConfig{
		DefaultStrategy: "RASTER",
		DefaultBrand:    "nimbus",
		PaperSize:       "A4",
		MarginMM:        10,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, stack.Close()) }()

	assert.Nil(t, stack.Host)
	assert.Equal(t, 0, stack.Attached())
	assert.Equal(t, printing.StrategyVector, stack.Renderer.DefaultStrategy())
	assert.False(t, stack.Renderer.Supports(printing.StrategyRaster))
	assert.False(t, stack.Renderer.Supports(printing.StrategyPrint))

	result, err := stack.Renderer.Render(context.Background(), sampleDocument(3), RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "nimbus", result.Brand.Code)
	assert.Equal(t, printing.StrategyVector, result.Strategy)
	// nimbus prints its terms on a page of their own
	assert.Equal(t, 2, result.PageCount)
}

func TestNewStack_WithBrowser(t *testing.T) {
	stack, err := NewStack(config.RendererConfig{
		DefaultStrategy: "print",
		BrowserEnabled:  true,
		ChromeHeadless:  true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, stack.Close()) }()

	require.NotNil(t, stack.Host)
	assert.Equal(t, printing.StrategyPrint, stack.Renderer.DefaultStrategy())
	assert.True(t, stack.Renderer.Supports(printing.StrategyRaster))
	assert.True(t, stack.Renderer.Supports(printing.StrategyPrint))
}

func TestNewStack_Errors(t *testing.T) {
	_, err := NewStack(config.RendererConfig{DefaultBrand: "acme"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme")

	_, err = NewStack(config.RendererConfig{BrandsFile: "/nonexistent/brands.yaml"}, nil)
	require.Error(t, err)
}
