package printing

import "context"

// Raster is one rasterized container. Data is a JPEG; its pixel size is read
// from the image itself.
type Raster struct {
	Data []byte
}

// Offscreen is an attached, invisible rendering container holding one page of HTML.
type Offscreen interface {
	// Rasterize captures the full container at scale times its CSS size.
	Rasterize(ctx context.Context, scale float64, quality int) (Raster, error)
	// Detach releases the container. It is safe to call more than once.
	Detach()
}

// OffscreenHost attaches HTML to off-screen containers of a fixed CSS width.
type OffscreenHost interface {
	Attach(ctx context.Context, html string, widthPx int) (Offscreen, error)
	// Attached returns the number of containers currently attached.
	Attached() int
}
