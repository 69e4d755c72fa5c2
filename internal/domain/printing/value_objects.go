package printing

import (
	"fmt"

	"github.com/crm/docrender/internal/domain/shared"
)

// MaxMargin is the largest accepted margin in millimeters.
const MaxMargin = 50.0

// Smallest printable area a layout fits in, in millimeters.
const (
	MinPrintableWidth  = 80.0
	MinPrintableHeight = 100.0
)

// Margins represents the page margins in millimeters
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left float64) (Margins, error) {
	for _, m := range []float64{top, right, bottom, left} {
		if m < 0 {
			return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
		}
		if m > MaxMargin {
			return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 50mm")
		}
	}
	return Margins{Top: top, Right: right, Bottom: bottom, Left: left}, nil
}

// UniformMargins returns the same margin on every side.
func UniformMargins(mm float64) (Margins, error) {
	return NewMargins(mm, mm, mm, mm)
}

// DefaultMargins returns the default page margins for A4 paper
func DefaultMargins() Margins {
	return Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
}

// PageGeometry describes the physical page a document is laid out on.
// All values are millimeters.
type PageGeometry struct {
	PaperSize   PaperSize   `json:"paper_size"`
	Orientation Orientation `json:"orientation"`
	Margins     Margins     `json:"margins"`
}

// DefaultPageGeometry is A4 portrait with 10mm margins.
func DefaultPageGeometry() PageGeometry {
	return PageGeometry{
		PaperSize:   PaperSizeA4,
		Orientation: OrientationPortrait,
		Margins:     DefaultMargins(),
	}
}

// Validate checks the geometry leaves a usable printable area.
func (g PageGeometry) Validate() error {
	if !g.PaperSize.IsValid() {
		return shared.NewDomainError("INVALID_PAPER_SIZE", "Invalid paper size: "+g.PaperSize.String())
	}
	if !g.Orientation.IsValid() {
		return shared.NewDomainError("INVALID_ORIENTATION", "Invalid orientation: "+g.Orientation.String())
	}
	if _, err := NewMargins(g.Margins.Top, g.Margins.Right, g.Margins.Bottom, g.Margins.Left); err != nil {
		return err
	}
	if g.PrintableWidth() < MinPrintableWidth || g.PrintableHeight() < MinPrintableHeight {
		return shared.NewDomainError("INVALID_MARGINS",
			fmt.Sprintf("Margins leave %.0fx%.0fmm printable, need at least %.0fx%.0fmm",
				g.PrintableWidth(), g.PrintableHeight(), MinPrintableWidth, MinPrintableHeight))
	}
	return nil
}

// PageSize returns the page width and height for the orientation.
func (g PageGeometry) PageSize() (width, height float64) {
	w, h := g.PaperSize.Dimensions()
	if g.Orientation == OrientationLandscape {
		return h, w
	}
	return w, h
}

// PrintableWidth is the page width minus left and right margins.
func (g PageGeometry) PrintableWidth() float64 {
	w, _ := g.PageSize()
	return w - g.Margins.Left - g.Margins.Right
}

// PrintableHeight is the page height minus top and bottom margins.
func (g PageGeometry) PrintableHeight() float64 {
	_, h := g.PageSize()
	return h - g.Margins.Top - g.Margins.Bottom
}
