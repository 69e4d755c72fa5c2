package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	engine, err := NewTemplateEngine()
	require.NoError(t, err)
	return NewAssembler(engine, WithClock(fixedClock))
}

func testBrand(t *testing.T, code string) Brand {
	t.Helper()
	b, ok := DefaultBrands().Get(code)
	require.True(t, ok, "brand %s", code)
	return b
}

func sampleDocument(items int) *document.Document {
	doc := &document.Document{
		Kind:            document.KindQuotation,
		QuotationNumber: "QT/2026/041",
		Date:            document.NewDate(time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)),
		BusinessName:    "Kaveri Textiles",
		Business: &document.BusinessRef{
			ID: "b-17",
			Account: &document.BusinessAccount{
				ID:          "b-17",
				ContactName: "Meena Raghavan",
				Email:       "meena@kaveritextiles.in",
				Address:     "12 Avinashi Road, Coimbatore 641018",
			},
		},
	}
	for i := range items {
		doc.Items = append(doc.Items, document.LineItem{
			ProductName: fmt.Sprintf("Product %d", i+1),
			Description: "Annual support and maintenance for the installed units",
			Quantity:    valueobject.ParseAmount(i%3 + 1),
			Rate:        valueobject.ParseAmount("1250.50"),
			HSNSAC:      "998313",
		})
	}
	return doc
}

func jpegOf(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

var errInjected = errors.New("injected rasterizer fault")

// fakeHost hands out containers whose raster is a fixed JPEG.
type fakeHost struct {
	mu         sync.Mutex
	image      []byte
	attached   int
	attachErr  error
	rasterErr  error
	failOnPage int // 1-based attach call that fails to rasterize, 0 for all when rasterErr is set
	calls      int
	widths     []int
	html       []string
}

func (h *fakeHost) Attach(_ context.Context, html string, widthPx int) (Offscreen, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attachErr != nil {
		return nil, h.attachErr
	}
	h.calls++
	h.attached++
	h.widths = append(h.widths, widthPx)
	h.html = append(h.html, html)

	var err error
	if h.rasterErr != nil && (h.failOnPage == 0 || h.failOnPage == h.calls) {
		err = h.rasterErr
	}
	return &fakeContainer{host: h, err: err}, nil
}

func (h *fakeHost) Attached() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

type fakeContainer struct {
	host *fakeHost
	err  error
	once sync.Once
}

func (c *fakeContainer) Rasterize(context.Context, float64, int) (Raster, error) {
	if c.err != nil {
		return Raster{}, c.err
	}
	return Raster{Data: c.host.image}, nil
}

func (c *fakeContainer) Detach() {
	c.once.Do(func() {
		c.host.mu.Lock()
		c.host.attached--
		c.host.mu.Unlock()
	})
}
