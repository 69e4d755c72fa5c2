package printing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// Page parts.
const (
	PartMain  = "main"
	PartTerms = "terms"
)

// CSSPixelsPerMM converts millimeters to CSS pixels at 96 dpi.
const CSSPixelsPerMM = 96.0 / 25.4

// Page is one self-contained HTML page of a document.
type Page struct {
	Index int
	HTML  string
}

// ItemRow is a display-ready line item.
type ItemRow struct {
	Index       int
	Name        string
	Description string
	HSN         string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
}

// ViewModel is everything a layout prints. It is built once per render and
// shared by the HTML and vector paths.
type ViewModel struct {
	Brand              Brand
	Kind               document.Kind
	Title              string
	Number             string
	Date               string
	SecondaryDateLabel string
	SecondaryDate      string
	Party              document.Party
	Items              []ItemRow
	HasItems           bool
	Totals             document.Totals
	AmountInWords      string
	TermsInline        bool
	AppendTermsPage    bool
	Part               string
	PageWidthPx        int
}

// Assembler turns a document and a brand into HTML pages.
type Assembler struct {
	engine   *TemplateEngine
	now      func() time.Time
	geometry printing.PageGeometry
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock sets the clock used when a document has no date.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithGeometry sets the page geometry the HTML width is derived from.
func WithGeometry(g printing.PageGeometry) AssemblerOption {
	return func(a *Assembler) {
		a.geometry = g
	}
}

// NewAssembler creates an assembler on top of engine.
func NewAssembler(engine *TemplateEngine, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		engine:   engine,
		now:      time.Now,
		geometry: printing.DefaultPageGeometry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Geometry returns the page geometry pages are laid out for.
func (a *Assembler) Geometry() printing.PageGeometry {
	return a.geometry
}

// ContainerWidthPx is the CSS width of the printable area.
func (a *Assembler) ContainerWidthPx() int {
	return int(a.geometry.PrintableWidth()*CSSPixelsPerMM + 0.5)
}

// BuildViewModel resolves every printed value of doc.
func (a *Assembler) BuildViewModel(doc *document.Document, brand Brand) ViewModel {
	vm := ViewModel{
		Brand:       brand,
		Kind:        doc.Kind,
		Title:       titleFor(doc.Kind),
		Number:      doc.Number(),
		Date:        doc.Date.OrToday(a.now()).Display(),
		Party:       doc.Party(),
		HasItems:    doc.HasItems(),
		Totals:      doc.Totals(),
		TermsInline: brand.HasTerms() && !brand.TermsOnSeparatePage,
		Part:        PartMain,
		PageWidthPx: a.ContainerWidthPx(),
	}
	if vm.Number == "" {
		vm.Number = titleCase(document.DraftName)
	}

	secondary := doc.ValidUntil
	vm.SecondaryDateLabel = "Valid Until"
	if doc.Kind == document.KindInvoice {
		secondary = doc.DueDate
		vm.SecondaryDateLabel = "Due Date"
	}
	vm.SecondaryDate = valueobject.NotAvailable
	if !secondary.IsZero() {
		vm.SecondaryDate = secondary.Display()
	}

	vm.Items = make([]ItemRow, len(doc.Items))
	for i, item := range doc.Items {
		vm.Items[i] = ItemRow{
			Index:       i + 1,
			Name:        item.DisplayName(),
			Description: item.DisplayDescription(),
			HSN:         item.DisplayHSN(),
			Quantity:    item.Qty(),
			Rate:        valueobject.RoundMoney(item.UnitRate()),
			Amount:      valueobject.RoundMoney(item.LineTotal()),
		}
	}
	vm.AmountInWords = valueobject.AmountInWords(valueobject.NewAmount(vm.Totals.Total))
	return vm
}

// Assemble renders the document pages: the main page, then a terms page when
// the brand prints its terms separately.
func (a *Assembler) Assemble(doc *document.Document, brand Brand) ([]Page, error) {
	if err := doc.Validate(); err != nil {
		return nil, NewRenderError(ErrCodeInvalidDocument, "document cannot be rendered", err)
	}
	return a.AssembleViewModel(a.BuildViewModel(doc, brand))
}

// AssembleViewModel renders pages from an already built view model.
func (a *Assembler) AssembleViewModel(vm ViewModel) ([]Page, error) {
	main, err := a.engine.Execute(vm.Brand.Layout, vm)
	if err != nil {
		return nil, err
	}
	pages := []Page{{Index: 0, HTML: main}}

	if vm.Brand.HasTerms() && vm.Brand.TermsOnSeparatePage {
		vm.Part = PartTerms
		terms, err := a.engine.Execute(vm.Brand.Layout, vm)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Index: 1, HTML: terms})
	}
	return pages, nil
}

// AssembleDocument renders every part into one HTML document separated by CSS
// page breaks, for engines that paginate HTML themselves.
func (a *Assembler) AssembleDocument(vm ViewModel) (string, error) {
	vm.Part = PartMain
	vm.AppendTermsPage = vm.Brand.HasTerms() && vm.Brand.TermsOnSeparatePage
	return a.engine.Execute(vm.Brand.Layout, vm)
}

func titleFor(kind document.Kind) string {
	if kind == document.KindInvoice {
		return "Invoice"
	}
	return "Quotation"
}
