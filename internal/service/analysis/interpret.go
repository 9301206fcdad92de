package analysis

import (
	"math"

	"github.com/wonny/marketpulse/internal/domain/analysis"
)

const (
	strongThreshold   = 0.7
	moderateThreshold = 0.3

	RecommendUse     = "Use sentiment for alerts/trading"
	RecommendAgainst = "Sentiment may not be reliable for price prediction"
)

// Interpret classifies a defined correlation. Returns nil when the correlation is undefined.
func (a *Analyzer) Interpret(c analysis.Correlation) *analysis.Interpretation {
	if !c.Defined() {
		return nil
	}
	r, p := *c.Coefficient, *c.PValue
	abs := math.Abs(r)

	out := &analysis.Interpretation{
		Strength:    StrengthOf(r),
		Direction:   analysis.DirectionNegative,
		Significant: p < a.cfg.PValueThreshold,
	}
	if r > 0 {
		out.Direction = analysis.DirectionPositive
	}

	strongEnough := abs > a.cfg.CorrelationThreshold
	out.Recommended = strongEnough && out.Significant

	switch {
	case out.Recommended:
		out.Recommendation = RecommendUse
		out.Conclusion = analysis.ConclusionPredictive
	case strongEnough:
		out.Recommendation = RecommendAgainst
		out.Conclusion = analysis.ConclusionUnconfirmed
	default:
		out.Recommendation = RecommendAgainst
		out.Conclusion = analysis.ConclusionWeak
	}

	return out
}

// StrengthOf buckets |r|
func StrengthOf(r float64) analysis.Strength {
	abs := math.Abs(r)
	switch {
	case abs > strongThreshold:
		return analysis.StrengthStrong
	case abs > moderateThreshold:
		return analysis.StrengthModerate
	default:
		return analysis.StrengthWeak
	}
}
