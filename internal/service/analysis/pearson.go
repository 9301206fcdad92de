package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/marketpulse/internal/domain/analysis"
)

// Pearson returns the Pearson coefficient of x and y with its two-sided p-value.
// Fewer than two points, mismatched lengths or zero variance leave both values nil.
func Pearson(x, y []float64) analysis.Correlation {
	n := len(x)
	c := analysis.Correlation{N: n}
	if n < 2 || n != len(y) {
		return c
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return c
	}
	r = clamp(r, -1, 1)
	p := pValue(r, n)

	c.Coefficient = &r
	c.PValue = &p
	return c
}

// pValue is the two-sided p-value of r under a Student t distribution with n-2 degrees of freedom
func pValue(r float64, n int) float64 {
	// two points always lie on a line
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	return clamp(2*dist.Survival(math.Abs(t)), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
