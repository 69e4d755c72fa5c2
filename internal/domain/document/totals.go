package document

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// GSTType selects how the tax is broken down on an invoice.
type GSTType string

const (
	// GSTFlat shows a single GST line. Document.Totals forces it for quotations.
	GSTFlat       GSTType = ""
	GSTInterstate GSTType = "interstate"
	GSTIntrastate GSTType = "intrastate"
)

// ParseGSTType normalises s; unknown values fall back to a flat GST line.
func ParseGSTType(s string) GSTType {
	switch t := GSTType(strings.ToLower(strings.TrimSpace(s))); t {
	case GSTInterstate, GSTIntrastate:
		return t
	default:
		return GSTFlat
	}
}

// UnmarshalJSON applies ParseGSTType.
func (t *GSTType) UnmarshalJSON(data []byte) error {
	*t = ParseGSTType(strings.Trim(string(data), `"`))
	return nil
}

// DefaultGSTRate is the GST percentage used when a document carries none.
var DefaultGSTRate = decimal.NewFromInt(18)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// TaxLine is one row of the tax breakdown.
type TaxLine struct {
	Label  string
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

// Totals holds the amounts printed in the totals block. All amounts are
// rounded to two decimals.
type Totals struct {
	SubTotal decimal.Decimal
	TaxRate  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	TaxLines []TaxLine
}

// ComputeTotals aggregates items into subtotal, tax and total. The intrastate
// split rounds CGST half-up and gives SGST the remainder, so both halves always
// add up to the tax an interstate invoice would show.
func ComputeTotals(items []LineItem, gstType GSTType, rate valueobject.Amount) Totals {
	subTotal := decimal.Zero
	for _, item := range items {
		subTotal = subTotal.Add(item.LineTotal())
	}
	subTotal = valueobject.RoundMoney(subTotal)

	pct := rate.Or(DefaultGSTRate)
	if pct.IsNegative() {
		pct = DefaultGSTRate
	}
	tax := valueobject.RoundMoney(subTotal.Mul(pct).Div(hundred))

	t := Totals{
		SubTotal: subTotal,
		TaxRate:  pct,
		Tax:      tax,
		Total:    subTotal.Add(tax),
	}

	switch gstType {
	case GSTIntrastate:
		cgst := valueobject.RoundMoney(tax.Div(two))
		half := pct.Div(two)
		t.TaxLines = []TaxLine{
			{Label: "CGST", Rate: half, Amount: cgst},
			{Label: "SGST", Rate: half, Amount: tax.Sub(cgst)},
		}
	case GSTInterstate:
		t.TaxLines = []TaxLine{{Label: "IGST", Rate: pct, Amount: tax}}
	default:
		t.TaxLines = []TaxLine{{Label: "GST", Rate: pct, Amount: tax}}
	}
	return t
}
