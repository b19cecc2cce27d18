package numeric

import "github.com/shopspring/decimal"

// ⭐ SSOT: every externally visible figure is rounded here

// Round2 rounds half away from zero to 2 decimals in decimal arithmetic,
// so 53.005 becomes 53.01 instead of drifting on binary representation.
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Clamp bounds x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
