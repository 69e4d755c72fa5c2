package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RupeeSymbol prefixes every formatted amount.
const RupeeSymbol = "₹"

// MoneyScale is the number of fractional digits every money value is rounded to.
const MoneyScale = 2

// RoundMoney rounds half away from zero to two decimals, which is half-up for
// the non-negative amounts documents carry.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatINR renders an amount as ₹ with Indian digit grouping and exactly two
// decimals, e.g. ₹12,34,567.89. Invalid input formats as ₹0.00. Negative
// amounts keep their sign in front of the symbol.
func FormatINR(a Amount) string {
	return FormatDecimalINR(a.Decimal())
}

// FormatDecimalINR is FormatINR for an already valid decimal.
func FormatDecimalINR(d decimal.Decimal) string {
	d = RoundMoney(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(MoneyScale)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + RupeeSymbol + GroupIndian(whole) + "." + frac
}

// GroupIndian inserts separators into a string of digits using the Indian
// convention: the last three digits, then groups of two.
func GroupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}
