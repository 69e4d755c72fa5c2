package printing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// Vector layout defaults. Lengths are millimeters, font sizes points.
const (
	DefaultFooterMargin = 20.0
	DefaultMinRowHeight = 8.0
	DefaultLineHeight   = 4.5

	cellPadding    = 1.5
	vectorFont     = "Helvetica"
	bodyFontSize   = 9.0
	nameFontSize   = 16.0
	titleFontSize  = 13.0
	titleHeight    = 10.0
	letterheadGap  = 4.0
	blockGap       = 4.0
	signatureSpace = 14.0
)

// VectorConfig configures a VectorPaginator.
type VectorConfig struct {
	Geometry printing.PageGeometry
	// FooterMargin is kept free at the bottom of every page for the page number.
	FooterMargin float64
	MinRowHeight float64
	LineHeight   float64
}

type column struct {
	title  string
	weight float64
	align  string
}

// itemColumns split the printable width; weights add up to 1.
var itemColumns = []column{
	{title: "#", weight: 0.05, align: "C"},
	{title: "Item", weight: 0.19, align: "L"},
	{title: "Description", weight: 0.31, align: "L"},
	{title: "HSN/SAC", weight: 0.10, align: "C"},
	{title: "Qty", weight: 0.09, align: "R"},
	{title: "Rate", weight: 0.13, align: "R"},
	{title: "Amount", weight: 0.13, align: "R"},
}

// VectorPaginator draws text and rectangles straight onto PDF pages, breaking
// to a new page whenever the next block would run into the footer margin.
type VectorPaginator struct {
	config VectorConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewVectorPaginator creates a vector paginator.
func NewVectorPaginator(config VectorConfig, logger *zap.Logger) *VectorPaginator {
	if config.Geometry.PaperSize == "" {
		config.Geometry = printing.DefaultPageGeometry()
	}
	if config.FooterMargin <= 0 {
		config.FooterMargin = DefaultFooterMargin
	}
	if config.MinRowHeight <= 0 {
		config.MinRowHeight = DefaultMinRowHeight
	}
	if config.LineHeight <= 0 {
		config.LineHeight = DefaultLineHeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorPaginator{config: config, logger: logger, now: time.Now}
}

// Paginate draws the view model and stamps "Page i of N" on every page once
// the page count is known.
func (p *VectorPaginator) Paginate(ctx context.Context, vm ViewModel) (*PaginationResult, error) {
	tracker := NewTracker()
	if err := tracker.Start(); err != nil {
		return nil, err
	}

	d := p.newVectorDoc(vm, tracker)
	if err := d.draw(ctx); err != nil {
		_ = tracker.Fail(err)
		return nil, err
	}
	d.stampPageNumbers()

	if d.pdf.Err() {
		err := NewRenderError(ErrCodePDFWriteFailed, "failed to draw PDF", d.pdf.Error())
		_ = tracker.Fail(err)
		return nil, err
	}
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		err = NewRenderError(ErrCodePDFWriteFailed, "failed to write PDF", err)
		_ = tracker.Fail(err)
		return nil, err
	}
	if err := tracker.Complete(); err != nil {
		return nil, err
	}

	p.logger.Debug("vector document drawn",
		zap.Int("pages", tracker.Page()),
		zap.Int("items", len(vm.Items)),
	)
	return &PaginationResult{PDFData: buf.Bytes(), PageCount: tracker.Page(), Phase: tracker.Phase()}, nil
}

// vectorDoc is the drawing state of one Paginate call.
type vectorDoc struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	vm      ViewModel
	cfg     VectorConfig
	tracker *Tracker

	left, top, width float64
	pageH, limit     float64
	y                float64
}

func (p *VectorPaginator) newVectorDoc(vm ViewModel, tracker *Tracker) *vectorDoc {
	g := p.config.Geometry
	pageW, pageH := g.PageSize()
	pdf := newPDF(pageW, pageH, g.Margins, p.now())
	pdf.SetCellMargin(0)
	pdf.SetTitle(vm.Title+" "+vm.Number, true)

	return &vectorDoc{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		vm:      vm,
		cfg:     p.config,
		tracker: tracker,
		left:    g.Margins.Left,
		top:     g.Margins.Top,
		width:   g.PrintableWidth(),
		pageH:   pageH,
		limit:   pageH - p.config.FooterMargin,
	}
}

func (d *vectorDoc) draw(ctx context.Context) error {
	d.startPage()
	d.drawTitle()

	steps := []func(context.Context) error{
		d.drawParty,
		d.drawItems,
		d.drawTotals,
		d.drawWords,
		d.drawBank,
		d.drawTerms,
		d.drawSignature,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return timeoutOr(ctx, ErrCodeRenderTimeout, "vector drawing interrupted", err)
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Fits reports whether a block of height h drawn at y stays above limit.
// A block ending exactly on the limit fits.
func Fits(y, h, limit float64) bool {
	return y+h <= limit+sliceToleranceMM
}

// ensure moves to a new page when a block of height h does not fit. The
// letterhead is redrawn first, then continuation, e.g. a table header row.
// Blocks taller than freshSpace are split by their callers instead.
func (d *vectorDoc) ensure(h float64, continuation func()) error {
	if Fits(d.y, h, d.limit) {
		return nil
	}
	return d.breakPage(continuation)
}

func (d *vectorDoc) breakPage(continuation func()) error {
	if _, err := d.tracker.AddPage(); err != nil {
		return err
	}
	d.startPage()
	if continuation != nil {
		continuation()
	}
	return nil
}

// freshSpace is the height available below the letterhead of a new page.
func (d *vectorDoc) freshSpace() float64 {
	return d.limit - d.top - d.letterheadHeight()
}

func (d *vectorDoc) startPage() {
	d.pdf.AddPage()
	d.y = d.top
	d.drawLetterhead()
}

// text converts UTF-8 into the core font encoding. The core fonts have no
// rupee glyph, so amounts are written with "Rs.".
func (d *vectorDoc) text(s string) string {
	return d.tr(latin1(s))
}

// latin1 keeps runes the core fonts can measure and replaces the rest.
func latin1(s string) string {
	s = strings.ReplaceAll(s, valueobject.RupeeSymbol, "Rs. ")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 256:
			return r
		case r == '‘' || r == '’':
			return '\''
		case r == '“' || r == '”':
			return '"'
		case r == '–' || r == '—':
			return '-'
		default:
			return '?'
		}
	}, s)
}

// wrap splits s into lines no wider than w with the current font.
func (d *vectorDoc) wrap(s string, w float64) []string {
	lines := d.pdf.SplitText(latin1(s), w)
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func (d *vectorDoc) setFont(style string, size float64) {
	d.pdf.SetFont(vectorFont, style, size)
}

func (d *vectorDoc) accent() (int, int, int) {
	return d.vm.Brand.AccentRGB()
}

func (d *vectorDoc) letterheadLines() []string {
	b := d.vm.Brand
	lines := make([]string, 0, len(b.AddressLines)+3)
	if strings.TrimSpace(b.Tagline) != "" {
		lines = append(lines, b.Tagline)
	}
	lines = append(lines, b.AddressLines...)
	if c := b.ContactLine(); c != "" {
		lines = append(lines, c)
	}
	if strings.TrimSpace(b.GSTIN) != "" {
		lines = append(lines, "GSTIN: "+b.GSTIN)
	}
	return lines
}

func (d *vectorDoc) letterheadHeight() float64 {
	return 8 + float64(len(d.letterheadLines()))*d.cfg.LineHeight + letterheadGap
}

func (d *vectorDoc) drawLetterhead() {
	r, g, b := d.accent()
	lines := d.letterheadLines()
	h := d.letterheadHeight()

	if d.vm.Brand.Layout == LayoutModern {
		d.pdf.SetFillColor(r, g, b)
		d.pdf.Rect(d.left, d.y, d.width, h-letterheadGap/2, "F")
		d.pdf.SetTextColor(255, 255, 255)
		d.setFont("B", nameFontSize)
		d.pdf.SetXY(d.left+cellPadding*2, d.y+cellPadding)
		d.pdf.CellFormat(d.width/2, 8, d.text(d.vm.Brand.CompanyName), "", 0, "L", false, 0, "")
		d.setFont("", bodyFontSize-1)
		for i, line := range lines {
			d.pdf.SetXY(d.left+d.width/2, d.y+cellPadding+float64(i)*d.cfg.LineHeight)
			d.pdf.CellFormat(d.width/2-cellPadding*2, d.cfg.LineHeight, d.text(line), "", 0, "R", false, 0, "")
		}
	} else {
		d.pdf.SetTextColor(r, g, b)
		d.setFont("B", nameFontSize)
		d.pdf.SetXY(d.left, d.y)
		d.pdf.CellFormat(d.width, 8, d.text(d.vm.Brand.CompanyName), "", 0, "L", false, 0, "")
		d.pdf.SetTextColor(60, 60, 60)
		d.setFont("", bodyFontSize)
		for i, line := range lines {
			d.pdf.SetXY(d.left, d.y+8+float64(i)*d.cfg.LineHeight)
			d.pdf.CellFormat(d.width, d.cfg.LineHeight, d.text(line), "", 0, "L", false, 0, "")
		}
		d.pdf.SetDrawColor(r, g, b)
		d.pdf.SetLineWidth(0.8)
		lineY := d.y + h - letterheadGap/2
		d.pdf.Line(d.left, lineY, d.left+d.width, lineY)
	}

	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetDrawColor(120, 120, 120)
	d.pdf.SetLineWidth(0.2)
	d.y += h
}

func (d *vectorDoc) drawTitle() {
	d.setFont("B", titleFontSize)
	d.pdf.SetXY(d.left, d.y)
	d.pdf.CellFormat(d.width, titleHeight, d.text(strings.ToUpper(d.vm.Title)), "", 0, "C", false, 0, "")
	d.y += titleHeight
}

func (d *vectorDoc) partyLines(w float64) (left, right []string) {
	party := d.vm.Party
	label := "Quotation For"
	if d.vm.Kind == document.KindInvoice {
		label = "Bill To"
	}
	d.setFont("", bodyFontSize)
	left = append(left, label+":", party.BusinessName, "Attn: "+party.ContactName)
	left = append(left, d.wrap(party.Address, w)...)
	left = append(left,
		"Phone: "+party.MobileNumber,
		"Email: "+party.Email,
		"GSTIN: "+party.GSTIN,
	)
	right = []string{
		d.vm.Title + " No.: " + d.vm.Number,
		"Date: " + d.vm.Date,
		d.vm.SecondaryDateLabel + ": " + d.vm.SecondaryDate,
	}
	return left, right
}

func (d *vectorDoc) drawParty(context.Context) error {
	leftW := d.width * 0.6
	left, right := d.partyLines(leftW - 2*cellPadding)
	n := max(len(left), len(right))
	h := float64(n)*d.cfg.LineHeight + 2*cellPadding

	if err := d.ensure(h+blockGap, nil); err != nil {
		return err
	}

	d.pdf.Rect(d.left, d.y, leftW, h, "D")
	d.pdf.Rect(d.left+leftW, d.y, d.width-leftW, h, "D")
	for i, line := range left {
		style := ""
		if i <= 1 {
			style = "B"
		}
		d.setFont(style, bodyFontSize)
		d.pdf.SetXY(d.left+cellPadding, d.y+cellPadding+float64(i)*d.cfg.LineHeight)
		d.pdf.CellFormat(leftW-2*cellPadding, d.cfg.LineHeight, d.text(line), "", 0, "L", false, 0, "")
	}
	d.setFont("", bodyFontSize)
	for i, line := range right {
		d.pdf.SetXY(d.left+leftW+cellPadding, d.y+cellPadding+float64(i)*d.cfg.LineHeight)
		d.pdf.CellFormat(d.width-leftW-2*cellPadding, d.cfg.LineHeight, d.text(line), "", 0, "L", false, 0, "")
	}
	d.y += h + blockGap
	return nil
}

func (d *vectorDoc) columnWidths() []float64 {
	widths := make([]float64, len(itemColumns))
	for i, c := range itemColumns {
		widths[i] = d.width * c.weight
	}
	return widths
}

func itemCells(row ItemRow) []string {
	return []string{
		fmt.Sprintf("%d", row.Index),
		row.Name,
		row.Description,
		row.HSN,
		row.Quantity.String(),
		valueobject.FormatDecimalINR(row.Rate),
		valueobject.FormatDecimalINR(row.Amount),
	}
}

// rowHeight is the taller of the minimum row height and the wrapped height of
// the tallest cell.
func (d *vectorDoc) rowHeight(cells []string, widths []float64) float64 {
	h := d.cfg.MinRowHeight
	for i, cell := range cells {
		lines := d.wrap(cell, widths[i]-2*cellPadding)
		h = max(h, float64(len(lines))*d.cfg.LineHeight+2*cellPadding)
	}
	return h
}

func (d *vectorDoc) wrapCells(cells []string, widths []float64) [][]string {
	wrapped := make([][]string, len(cells))
	for i, cell := range cells {
		wrapped[i] = d.wrap(cell, widths[i]-2*cellPadding)
	}
	return wrapped
}

func (d *vectorDoc) drawRow(cells []string, widths []float64, h float64, header bool) {
	d.drawRowLines(d.wrapCells(cells, widths), widths, h, header)
}

func (d *vectorDoc) drawRowLines(lines [][]string, widths []float64, h float64, header bool) {
	x := d.left
	if header {
		d.pdf.SetFillColor(235, 235, 235)
	}
	for i, cellLines := range lines {
		style := "D"
		if header {
			style = "FD"
		}
		d.pdf.Rect(x, d.y, widths[i], h, style)
		for j, line := range cellLines {
			d.pdf.SetXY(x+cellPadding, d.y+cellPadding+float64(j)*d.cfg.LineHeight)
			d.pdf.CellFormat(widths[i]-2*cellPadding, d.cfg.LineHeight, d.tr(line), "", 0, itemColumns[i].align, false, 0, "")
		}
		x += widths[i]
	}
	d.y += h
}

// drawItemRow draws one item row. A row that cannot fit even on a fresh page
// is cut into slices of whole lines, each continued under a repeated header.
func (d *vectorDoc) drawItemRow(cells []string, widths []float64) error {
	d.setFont("", bodyFontSize)
	h := d.rowHeight(cells, widths)
	if h <= d.freshSpace()-d.cfg.MinRowHeight {
		if err := d.ensure(h, d.drawItemHeader); err != nil {
			return err
		}
		d.setFont("", bodyFontSize)
		d.drawRow(cells, widths, h, false)
		return nil
	}

	wrapped := d.wrapCells(cells, widths)
	total := 0
	for _, lines := range wrapped {
		total = max(total, len(lines))
	}
	fresh := false
	for start := 0; start < total; {
		n := int((d.limit - d.y - 2*cellPadding + sliceToleranceMM) / d.cfg.LineHeight)
		if n < 1 && !fresh {
			if err := d.breakPage(d.drawItemHeader); err != nil {
				return err
			}
			fresh = true
			continue
		}
		n = max(n, 1)
		end := min(start+n, total)

		slice := make([][]string, len(wrapped))
		for i, lines := range wrapped {
			if start < len(lines) {
				slice[i] = lines[start:min(end, len(lines))]
			}
		}
		d.setFont("", bodyFontSize)
		d.drawRowLines(slice, widths, float64(end-start)*d.cfg.LineHeight+2*cellPadding, false)
		start = end
		fresh = false
	}
	return nil
}

func (d *vectorDoc) drawItemHeader() {
	widths := d.columnWidths()
	titles := make([]string, len(itemColumns))
	for i, c := range itemColumns {
		titles[i] = c.title
	}
	d.setFont("B", bodyFontSize)
	d.drawRow(titles, widths, d.cfg.MinRowHeight, true)
	d.setFont("", bodyFontSize)
}

func (d *vectorDoc) drawItems(ctx context.Context) error {
	if !d.vm.HasItems {
		return nil
	}
	widths := d.columnWidths()

	d.setFont("", bodyFontSize)
	first := d.rowHeight(itemCells(d.vm.Items[0]), widths)
	if first > d.freshSpace()-d.cfg.MinRowHeight {
		first = d.cfg.LineHeight + 2*cellPadding
	}
	// The header row never sits alone at the bottom of a page.
	if err := d.ensure(d.cfg.MinRowHeight+first, nil); err != nil {
		return err
	}
	d.drawItemHeader()

	for _, row := range d.vm.Items {
		if err := ctx.Err(); err != nil {
			return timeoutOr(ctx, ErrCodeRenderTimeout, "vector drawing interrupted", err)
		}
		if err := d.drawItemRow(itemCells(row), widths); err != nil {
			return err
		}
	}
	d.y += blockGap
	return nil
}

func (d *vectorDoc) totalsRows() [][2]string {
	t := d.vm.Totals
	rows := [][2]string{{"Sub Total", valueobject.FormatDecimalINR(t.SubTotal)}}
	for _, line := range t.TaxLines {
		rows = append(rows, [2]string{
			fmt.Sprintf("%s (%s%%)", line.Label, line.Rate.String()),
			valueobject.FormatDecimalINR(line.Amount),
		})
	}
	return append(rows, [2]string{"Total", valueobject.FormatDecimalINR(t.Total)})
}

func (d *vectorDoc) drawTotals(context.Context) error {
	rows := d.totalsRows()
	rowH := d.cfg.LineHeight + 2*cellPadding
	h := float64(len(rows)) * rowH
	if err := d.ensure(h+blockGap, nil); err != nil {
		return err
	}

	boxW := d.width * 0.45
	x := d.left + d.width - boxW
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		d.setFont(style, bodyFontSize)
		d.pdf.Rect(x, d.y, boxW, rowH, "D")
		d.pdf.SetXY(x+cellPadding, d.y+cellPadding)
		d.pdf.CellFormat(boxW/2, d.cfg.LineHeight, d.text(row[0]), "", 0, "L", false, 0, "")
		d.pdf.SetXY(x+boxW/2, d.y+cellPadding)
		d.pdf.CellFormat(boxW/2-cellPadding, d.cfg.LineHeight, d.text(row[1]), "", 0, "R", false, 0, "")
		d.y += rowH
	}
	d.y += blockGap
	return nil
}

// drawParagraph keeps a paragraph on one page when a fresh page can hold it
// and breaks it line by line otherwise.
func (d *vectorDoc) drawParagraph(lines []string, style string) error {
	h := float64(len(lines)) * d.cfg.LineHeight
	if h <= d.freshSpace() {
		if err := d.ensure(h, nil); err != nil {
			return err
		}
	}
	for _, line := range lines {
		if err := d.ensure(d.cfg.LineHeight, nil); err != nil {
			return err
		}
		d.setFont(style, bodyFontSize)
		d.pdf.SetXY(d.left, d.y)
		d.pdf.CellFormat(d.width, d.cfg.LineHeight, d.tr(line), "", 0, "L", false, 0, "")
		d.y += d.cfg.LineHeight
	}
	return nil
}

func (d *vectorDoc) drawWords(context.Context) error {
	d.setFont("", bodyFontSize)
	lines := d.wrap("Amount in words: "+d.vm.AmountInWords, d.width)
	if err := d.drawParagraph(lines, ""); err != nil {
		return err
	}
	d.y += blockGap
	return nil
}

func (d *vectorDoc) drawBank(context.Context) error {
	bank := d.vm.Brand.Bank
	if bank == nil {
		return nil
	}
	branch := bank.BankName
	if strings.TrimSpace(bank.Branch) != "" {
		branch += ", " + bank.Branch
	}
	lines := []string{
		"Bank Details",
		latin1(bank.AccountName),
		latin1(branch),
		latin1("A/c No: " + bank.AccountNumber + " | IFSC: " + bank.IFSC),
	}
	if err := d.ensure(float64(len(lines))*d.cfg.LineHeight, nil); err != nil {
		return err
	}
	d.setFont("B", bodyFontSize)
	d.pdf.SetXY(d.left, d.y)
	d.pdf.CellFormat(d.width, d.cfg.LineHeight, lines[0], "", 0, "L", false, 0, "")
	d.y += d.cfg.LineHeight
	if err := d.drawParagraph(lines[1:], ""); err != nil {
		return err
	}
	d.y += blockGap
	return nil
}

// drawTerms writes one row per term. Brands that print terms separately get
// them on a page of their own.
func (d *vectorDoc) drawTerms(context.Context) error {
	brand := d.vm.Brand
	if !brand.HasTerms() {
		return nil
	}
	if brand.TermsOnSeparatePage {
		if err := d.breakPage(nil); err != nil {
			return err
		}
	}

	headingH := d.cfg.LineHeight + cellPadding
	if err := d.ensure(headingH+d.cfg.LineHeight, nil); err != nil {
		return err
	}
	d.setFont("B", bodyFontSize)
	d.pdf.SetXY(d.left, d.y)
	d.pdf.CellFormat(d.width, d.cfg.LineHeight, "Terms & Conditions", "", 0, "L", false, 0, "")
	d.y += headingH

	d.setFont("", bodyFontSize)
	for i, term := range brand.Terms {
		lines := d.wrap(fmt.Sprintf("%d. %s", i+1, term), d.width)
		if err := d.drawParagraph(lines, ""); err != nil {
			return err
		}
	}
	d.y += blockGap
	return nil
}

func (d *vectorDoc) drawSignature(context.Context) error {
	h := d.cfg.LineHeight*2 + signatureSpace
	if err := d.ensure(h, nil); err != nil {
		return err
	}
	w := d.width * 0.4
	x := d.left + d.width - w
	d.setFont("B", bodyFontSize)
	d.pdf.SetXY(x, d.y)
	d.pdf.CellFormat(w, d.cfg.LineHeight, d.text("For "+d.vm.Brand.CompanyName), "", 0, "R", false, 0, "")
	lineY := d.y + d.cfg.LineHeight + signatureSpace
	d.pdf.Line(x+w*0.2, lineY, x+w, lineY)
	d.setFont("", bodyFontSize)
	d.pdf.SetXY(x, lineY)
	d.pdf.CellFormat(w, d.cfg.LineHeight, d.text(d.vm.Brand.Signatory), "", 0, "R", false, 0, "")
	d.y += h
	return nil
}

// stampPageNumbers revisits every page once drawing is finished.
func (d *vectorDoc) stampPageNumbers() {
	n := d.pdf.PageCount()
	d.setFont("", bodyFontSize-1)
	d.pdf.SetTextColor(100, 100, 100)
	for i := 1; i <= n; i++ {
		d.pdf.SetPage(i)
		d.pdf.SetXY(d.left, d.limit+(d.pageH-d.limit-d.cfg.LineHeight)/2)
		d.pdf.CellFormat(d.width, d.cfg.LineHeight, fmt.Sprintf("Page %d of %d", i, n), "", 0, "C", false, 0, "")
	}
}
