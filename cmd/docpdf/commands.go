package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
	"github.com/crm/docrender/internal/infrastructure/config"
	"github.com/crm/docrender/internal/infrastructure/crmapi"
	"github.com/crm/docrender/internal/infrastructure/logger"
	infra "github.com/crm/docrender/internal/infrastructure/printing"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "config file; config.toml is searched for when empty",
}

var documentFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "in",
		Usage: "document JSON file, - for stdin",
	},
	&cli.StringFlag{
		Name:  "fetch",
		Usage: "fetch KIND/ID from the CRM instead of reading a file",
	},
	&cli.StringFlag{
		Name:  "kind",
		Usage: "quotation or invoice, when the JSON has no kind",
	},
	&cli.StringFlag{
		Name:  "brand",
		Usage: "letterhead code",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docpdf",
		Usage: "render CRM quotations and invoices",
		Flags: []cli.Flag{
			configFlag,
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:  "render",
				Usage: "render a document to PDF",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "strategy", Usage: "RASTER, VECTOR or PRINT"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; defaults to the document file name"},
				}, documentFlags...),
				Action: renderAction,
			},
			{
				Name:  "preview",
				Usage: "write the assembled HTML pages",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "write page-N.html files here instead of stdout"},
				}, documentFlags...),
				Action: previewAction,
			},
			{
				Name:      "words",
				Usage:     "spell an amount in Indian English",
				ArgsUsage: "AMOUNT",
				Action:    wordsAction,
			},
			{
				Name:   "brands",
				Usage:  "list the configured letterheads",
				Action: brandsAction,
			},
		},
	}
}

// env is what every rendering command needs.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	stack *infra.Stack
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05.000",
	})
	if err != nil {
		return nil, err
	}
	stack, err := infra.NewStack(cfg.Renderer, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, stack: stack}, nil
}

func (e *env) close() {
	if err := e.stack.Close(); err != nil {
		e.log.Warn("failed to close browser", zap.Error(err))
	}
	logger.Sync(e.log)
}

// loadDocument reads the document named by --in or --fetch.
func (e *env) loadDocument(c *cli.Context) (*document.Document, error) {
	if ref := c.String("fetch"); ref != "" {
		kindName, id, ok := strings.Cut(ref, "/")
		if !ok || id == "" {
			return nil, fmt.Errorf("--fetch wants KIND/ID, got %q", ref)
		}
		kind, err := document.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		client, err := crmapi.NewClient(e.cfg.CRM, crmapi.WithLogger(e.log.Named("crm")))
		if err != nil {
			return nil, err
		}
		return client.GetDocument(c.Context, kind, id)
	}

	in := c.String("in")
	if in == "" {
		return nil, fmt.Errorf("one of --in or --fetch is required")
	}
	var r io.Reader = os.Stdin
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeDocument(r, c.String("kind"))
}

func decodeDocument(r io.Reader, kind string) (*document.Document, error) {
	var doc document.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if kind != "" {
		k, err := document.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		doc.Kind = k
	}
	return &doc, nil
}

func renderAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	doc, err := e.loadDocument(c)
	if err != nil {
		return err
	}
	result, err := e.stack.Renderer.Render(c.Context, doc, infra.RenderOptions{
		Strategy:  printing.Strategy(strings.ToUpper(c.String("strategy"))),
		BrandCode: c.String("brand"),
	})
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = result.FileName
	}
	if err := os.WriteFile(out, result.PDFData, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s: %d pages, %d bytes, %s strategy, %s letterhead, %s\n",
		out, result.PageCount, len(result.PDFData), result.Strategy, result.Brand.Code, result.Duration.Round(time.Millisecond))
	return err
}

func previewAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	doc, err := e.loadDocument(c)
	if err != nil {
		return err
	}
	result, err := e.stack.Renderer.Preview(doc, c.String("brand"))
	if err != nil {
		return err
	}
	return writePages(c.App.Writer, c.String("dir"), result.Pages)
}

func writePages(w io.Writer, dir string, pages []infra.Page) error {
	if dir == "" {
		for _, p := range pages {
			if _, err := io.WriteString(w, p.HTML+"\n"); err != nil {
				return err
			}
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range pages {
		name := filepath.Join(dir, fmt.Sprintf("page-%d.html", p.Index+1))
		if err := os.WriteFile(name, []byte(p.HTML), 0o644); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

func wordsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: docpdf words AMOUNT", 2)
	}
	amount := valueobject.ParseAmount(c.Args().First())
	if !amount.Valid() {
		return fmt.Errorf("%q is not an amount", c.Args().First())
	}
	_, err := fmt.Fprintln(c.App.Writer, valueobject.AmountInWords(amount))
	return err
}

func brandsAction(c *cli.Context) error {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return err
	}
	brands, err := infra.LoadBrands(cfg.Renderer.BrandsFile)
	if err != nil {
		return err
	}
	for _, b := range brands.Brands {
		if _, err := fmt.Fprintf(c.App.Writer, "%-12s %-8s %s\n", b.Code, b.Layout, b.CompanyName); err != nil {
			return err
		}
	}
	return nil
}
