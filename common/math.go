package common

import "github.com/shopspring/decimal"

// DecimalToFixed rounds num to precision decimal places, halves away from zero.
// Rounding in decimal avoids float artefacts like 44.980000000000004.
func DecimalToFixed(num float64, precision int) float64 {
	return decimal.NewFromFloat(num).Round(int32(precision)).InexactFloat64()
}
