package valueobject

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"zero", 0, "Zero Rupees Only"},
		{"one", 1, "One Rupees Only"},
		{"teen", 15, "Fifteen Rupees Only"},
		{"tens", 40, "Forty Rupees Only"},
		{"hundred", 100, "One Hundred Rupees Only"},
		{"hundred with remainder", 305, "Three Hundred Five Rupees Only"},
		{"thousand", 1000, "One Thousand Rupees Only"},
		{"lakh", 100000, "One Lakh Rupees Only"},
		{"crore", 10000000, "One Crore Rupees Only"},
		{"paisa", 1234.56, "One Thousand Two Hundred Thirty Four Rupees and Fifty Six Paisa Only"},
		{"lakh skips zero thousand", 500025, "Five Lakh Twenty Five Rupees Only"},
		{"full scale", "123456789", "Twelve Crore Thirty Four Lakh Fifty Six Thousand Seven Hundred Eighty Nine Rupees Only"},
		{"hundreds of crores", "2500000000", "Two Hundred Fifty Crore Rupees Only"},
		{"paisa only", "0.5", "Zero Rupees and Fifty Paisa Only"},
		{"rounds paisa up", "10.999", "Eleven Rupees Only"},
		{"NaN", math.NaN(), "N/A"},
		{"nil", nil, "N/A"},
		{"garbage", "twelve", "N/A"},
		{"negative", -3, "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInWords(ParseAmount(tt.in)))
		})
	}
}

func TestAmountInWords_NoDoubleSpaces(t *testing.T) {
	for _, v := range []int64{20, 100, 1000, 100000, 10000000, 1_00_00_00_000} {
		got := AmountInWords(ParseAmount(v))
		assert.NotContains(t, got, "  ")
	}
}

func TestIntegerInWords(t *testing.T) {
	assert.Equal(t, "Zero", IntegerInWords(0))
	assert.Equal(t, "Ninety Nine", IntegerInWords(99))
	assert.Equal(t, "Nine Hundred Ninety Nine", IntegerInWords(999))
	assert.Equal(t, "Ten Thousand", IntegerInWords(10000))
	assert.Equal(t, "Ninety Nine Lakh Ninety Nine Thousand Nine Hundred Ninety Nine", IntegerInWords(9999999))
}
