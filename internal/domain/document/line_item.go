package document

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// Specification is one name/value attribute of a line item. Order is kept for display.
type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LineItem is one row of a quotation or invoice.
type LineItem struct {
	ProductName    string             `json:"productName,omitempty"`
	Description    string             `json:"description,omitempty"`
	Quantity       valueobject.Amount `json:"quantity"`
	Rate           valueobject.Amount `json:"rate"`
	HSNSAC         string             `json:"hsnSac,omitempty"`
	Specifications []Specification    `json:"specifications,omitempty"`
}

// Qty returns the quantity, zero when missing, malformed or negative.
func (i LineItem) Qty() decimal.Decimal {
	return i.Quantity.NonNegative()
}

// UnitRate returns the rate, zero when missing, malformed or negative.
func (i LineItem) UnitRate() decimal.Decimal {
	return i.Rate.NonNegative()
}

// LineTotal is quantity times rate. It is computed on every call.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Qty().Mul(i.UnitRate())
}

// SpecificationText joins the specifications as "name: value" pairs.
func (i LineItem) SpecificationText() string {
	parts := make([]string, 0, len(i.Specifications))
	for _, s := range i.Specifications {
		name, value := strings.TrimSpace(s.Name), strings.TrimSpace(s.Value)
		if name == "" && value == "" {
			continue
		}
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, ", ")
}

// DisplayName returns the product name or N/A.
func (i LineItem) DisplayName() string {
	return ItemNameChain.Resolve(i)
}

// DisplayDescription follows description, then specifications, then N/A.
func (i LineItem) DisplayDescription() string {
	return ItemDescriptionChain.Resolve(i)
}

// DisplayHSN returns the HSN/SAC code or a dash.
func (i LineItem) DisplayHSN() string {
	if v := strings.TrimSpace(i.HSNSAC); v != "" {
		return v
	}
	return "-"
}
