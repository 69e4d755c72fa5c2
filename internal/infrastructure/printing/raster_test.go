package printing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm/docrender/internal/domain/printing"
)

func newTestRaster(host OffscreenHost) *RasterPaginator {
	p := NewRasterPaginator(host, RasterConfig{Geometry: printing.DefaultPageGeometry()}, nil)
	p.now = fixedClock
	return p
}

func TestSliceOffsets(t *testing.T) {
	tests := []struct {
		name        string
		imageHeight float64
		want        []float64
	}{
		{"shorter than a page", 120, []float64{0}},
		{"exactly one page", 277, []float64{0}},
		{"one unit over", 278, []float64{0, 277}},
		{"exactly two pages", 554, []float64{0, 277}},
		{"just over two pages", 554.5, []float64{0, 277, 554}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SliceOffsets(tt.imageHeight, 277))
		})
	}

	assert.Equal(t, []float64{0}, SliceOffsets(500, 0))
}

func TestRasterPaginator_PageBoundary(t *testing.T) {
	// A4 with 10mm margins prints 190mm x 277mm, so a 190px wide image maps
	// one pixel to one millimeter.
	tests := []struct {
		name      string
		heightPx  int
		wantPages int
	}{
		{"exactly one printable page", 277, 1},
		{"one unit over a page", 278, 2},
		{"three pages", 700, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{image: jpegOf(t, 190, tt.heightPx)}
			result, err := newTestRaster(host).Paginate(context.Background(), []Page{{Index: 0, HTML: "<p>x</p>"}})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPages, result.PageCount)
			assert.Equal(t, PhaseComplete, result.Phase)
			pages, err := CountPages(result.PDFData)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, pages)
			assert.Zero(t, host.Attached())
		})
	}
}

func TestRasterPaginator_PagesAreSequential(t *testing.T) {
	host := &fakeHost{image: jpegOf(t, 190, 100)}
	pages := []Page{{Index: 0, HTML: "<p>main</p>"}, {Index: 1, HTML: "<p>terms</p>"}}

	result, err := newTestRaster(host).Paginate(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, 2, result.PageCount)
	assert.Equal(t, []string{"<p>main</p>", "<p>terms</p>"}, host.html)
	// 190mm at 96 dpi.
	assert.Equal(t, []int{718, 718}, host.widths)
}

func TestRasterPaginator_CleanupOnFailure(t *testing.T) {
	t.Run("rasterizer fault on the second page", func(t *testing.T) {
		host := &fakeHost{image: jpegOf(t, 190, 100), rasterErr: errInjected, failOnPage: 2}
		pages := []Page{{Index: 0, HTML: "<p>1</p>"}, {Index: 1, HTML: "<p>2</p>"}}

		result, err := newTestRaster(host).Paginate(context.Background(), pages)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, ErrCodeRasterizeFailed, ErrorCode(err))
		assert.ErrorIs(t, err, errInjected)
		assert.Zero(t, host.Attached())
		assert.Equal(t, 2, host.calls)
	})

	t.Run("undecodable image", func(t *testing.T) {
		host := &fakeHost{image: []byte("not a jpeg")}
		_, err := newTestRaster(host).Paginate(context.Background(), []Page{{HTML: "<p>x</p>"}})
		require.Error(t, err)
		assert.Equal(t, ErrCodeImageDecodeFailed, ErrorCode(err))
		assert.Zero(t, host.Attached())
	})

	t.Run("attach failure", func(t *testing.T) {
		host := &fakeHost{attachErr: errors.New("no browser")}
		_, err := newTestRaster(host).Paginate(context.Background(), []Page{{HTML: "<p>x</p>"}})
		require.Error(t, err)
		assert.Equal(t, ErrCodeBrowserUnavailable, ErrorCode(err))
		assert.Zero(t, host.Attached())
	})

	t.Run("cancelled context", func(t *testing.T) {
		host := &fakeHost{image: jpegOf(t, 190, 100)}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestRaster(host).Paginate(ctx, []Page{{HTML: "<p>x</p>"}})
		require.Error(t, err)
		assert.Equal(t, ErrCodeRenderTimeout, ErrorCode(err))
		assert.Zero(t, host.Attached())
	})

	t.Run("no pages", func(t *testing.T) {
		_, err := newTestRaster(&fakeHost{}).Paginate(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, ErrCodeTemplateFailed, ErrorCode(err))
	})
}

func TestRasterPaginator_AssembledDocument(t *testing.T) {
	a := newTestAssembler(t)
	pages, err := a.Assemble(sampleDocument(3), testBrand(t, "nimbus"))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	host := &fakeHost{image: jpegOf(t, 190, 250)}
	result, err := newTestRaster(host).Paginate(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PageCount)
	assert.Zero(t, host.Attached())
}
