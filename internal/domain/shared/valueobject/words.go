package valueobject

import (
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is the placeholder shown for values that cannot be rendered.
const NotAvailable = "N/A"

var (
	onesWords = [...]string{
		"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
		"Seventeen", "Eighteen", "Nineteen",
	}
	tensWords = [...]string{
		"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
	}
	// scaleWords apply to the two-digit groups that follow the first three digits.
	scaleWords = [...]string{"Thousand", "Lakh", "Crore"}

	maxWordsAmount = decimal.NewFromInt(math.MaxInt64)
)

// AmountInWords spells an amount in the Indian numbering scale followed by
// "Rupees", an optional "and ... Paisa" part and "Only". Invalid and negative
// amounts yield "N/A".
func AmountInWords(a Amount) string {
	if !a.Valid() || a.Decimal().IsNegative() {
		return NotAvailable
	}
	d := RoundMoney(a.Decimal())
	if d.GreaterThan(maxWordsAmount) {
		return NotAvailable
	}

	rupees := d.IntPart()
	paisa := d.Sub(d.Floor()).Shift(MoneyScale).IntPart()

	var b strings.Builder
	b.WriteString(IntegerInWords(rupees))
	b.WriteString(" Rupees")
	if paisa > 0 {
		b.WriteString(" and ")
		b.WriteString(twoDigitWords(paisa))
		b.WriteString(" Paisa")
	}
	b.WriteString(" Only")
	return collapseSpaces(b.String())
}

// IntegerInWords spells a non-negative integer using Hundred, Thousand, Lakh
// and Crore. Counts of Crore above 99 are themselves spelled recursively.
func IntegerInWords(n int64) string {
	if n <= 0 {
		return "Zero"
	}

	var groups []string
	if first := n % 1000; first > 0 {
		groups = append(groups, threeDigitWords(first))
	}
	n /= 1000

	for i := 0; n > 0; i++ {
		if i == len(scaleWords)-1 {
			groups = append(groups, IntegerInWords(n)+" "+scaleWords[i])
			break
		}
		if g := n % 100; g > 0 {
			groups = append(groups, twoDigitWords(g)+" "+scaleWords[i])
		}
		n /= 100
	}

	slices.Reverse(groups)
	return collapseSpaces(strings.Join(groups, " "))
}

func threeDigitWords(n int64) string {
	if n < 100 {
		return twoDigitWords(n)
	}
	return onesWords[n/100] + " Hundred " + twoDigitWords(n%100)
}

func twoDigitWords(n int64) string {
	if n < 20 {
		return onesWords[n]
	}
	return tensWords[n/10] + " " + onesWords[n%10]
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
