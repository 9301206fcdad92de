package resolver

import "github.com/shopspring/decimal"

var (
	// Epsilon is the materiality threshold for a before/after pair (one cent)
	Epsilon = decimal.RequireFromString("0.01")

	// intraday scan thresholds
	openCloseThreshold = decimal.RequireFromString("0.05")
	rangeThreshold     = decimal.RequireFromString("0.10")
)

// movement returns |a - b| computed in decimal so that 100.01 - 100 is exactly 0.01
func movement(a, b float64) decimal.Decimal {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
}

// IsDegenerate reports whether the pair moved less than Epsilon
func IsDegenerate(before, after float64) bool {
	return movement(before, after).LessThan(Epsilon)
}

func differsBy(a, b float64, threshold decimal.Decimal) bool {
	return movement(a, b).GreaterThan(threshold)
}

// syntheticAfter returns before + Epsilon
func syntheticAfter(before float64) float64 {
	return decimal.NewFromFloat(before).Add(Epsilon).InexactFloat64()
}
