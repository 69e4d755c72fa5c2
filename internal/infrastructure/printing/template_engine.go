package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateEngine renders the document layouts. Each layout is parsed together
// with the shared base and partials, so every layout can define its own
// "style", "main" and "terms" blocks.
type TemplateEngine struct {
	funcMap template.FuncMap
	layouts map[string]*template.Template
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithTemplateFuncs adds or replaces template functions.
func WithTemplateFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine parses the embedded layouts.
func NewTemplateEngine(opts ...TemplateEngineOption) (*TemplateEngine, error) {
	e := &TemplateEngine{
		funcMap: template.FuncMap{
			"inr":      formatINR,
			"words":    amountInWords,
			"date":     formatDate,
			"pct":      formatPercent,
			"qty":      formatQuantity,
			"title":    titleCase,
			"upper":    strings.ToUpper,
			"join":     strings.Join,
			"add":      func(a, b int) int { return a + b },
			"safeCSS":  func(s string) template.CSS { return template.CSS(s) },
			"notEmpty": func(s string) bool { return strings.TrimSpace(s) != "" },
		},
		layouts: make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, layout := range []string{LayoutClassic, LayoutModern} {
		tmpl, err := template.New(layout).Funcs(e.funcMap).ParseFS(templateFS,
			"templates/base.html",
			"templates/partials.html",
			"templates/"+layout+".html",
		)
		if err != nil {
			return nil, NewRenderError(ErrCodeTemplateFailed, "failed to parse layout "+layout, err)
		}
		e.layouts[layout] = tmpl
	}
	return e, nil
}

// Execute renders the "page" template of the layout.
func (e *TemplateEngine) Execute(layout string, data any) (string, error) {
	tmpl, ok := e.layouts[layout]
	if !ok {
		return "", NewRenderError(ErrCodeTemplateFailed, fmt.Sprintf("unknown layout %q", layout), nil)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "page", data); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

// GetFuncMap returns a copy of the template function map
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

func formatINR(v any) string {
	return valueobject.FormatDecimalINR(toDecimal(v))
}

func amountInWords(v any) string {
	if a, ok := v.(valueobject.Amount); ok {
		return valueobject.AmountInWords(a)
	}
	return valueobject.AmountInWords(valueobject.NewAmount(toDecimal(v)))
}

func formatDate(v any) string {
	switch d := v.(type) {
	case document.Date:
		if d.IsZero() {
			return valueobject.NotAvailable
		}
		return d.Display()
	case string:
		if parsed, ok := document.ParseDate(d); ok {
			return parsed.Display()
		}
	}
	return valueobject.NotAvailable
}

// formatPercent drops trailing zeros: 18 -> "18%", 9.5 -> "9.5%".
func formatPercent(v any) string {
	return toDecimal(v).String() + "%"
}

func formatQuantity(v any) string {
	return toDecimal(v).String()
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// toDecimal converts the value types the view model carries.
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case valueobject.Amount:
		return val.Decimal()
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		return valueobject.ParseAmount(val).Decimal()
	default:
		return decimal.Zero
	}
}
