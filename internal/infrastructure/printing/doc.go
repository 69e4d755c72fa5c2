// Package printing turns quotations and invoices into PDF documents.
//
// A document is first assembled into self-contained HTML pages by the
// Assembler, using the letterhead picked by a BrandStrategy. The pages are
// then paginated by one of three strategies:
//
//   - RasterPaginator attaches each page to an off-screen browser tab,
//     captures it as a JPEG and slices the image across A4 pages;
//   - VectorPaginator draws text and rules directly with fpdf, breaking pages
//     block by block and repeating the table header;
//   - ChromedpRenderer prints the HTML with the browser's own paginator.
//
// Renderer selects the strategy per request. Every failure is reported as a
// *RenderError carrying one of the ErrCode constants.
//
// Example usage:
//
//	engine, err := printing.NewTemplateEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	renderer := printing.NewRenderer(
//	    printing.NewAssembler(engine),
//	    printing.DefaultBrands(),
//	    printing.NewVectorPaginator(printing.VectorConfig{}, logger),
//	    printing.RendererConfig{},
//	)
//	result, err := renderer.Render(ctx, doc, printing.RenderOptions{})
package printing
