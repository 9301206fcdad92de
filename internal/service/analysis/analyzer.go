package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/marketpulse/internal/domain/analysis"
	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/pkg/config"
)

// Config holds analyzer thresholds
type Config struct {
	MaxLag               int
	MinDataPoints        int     // a lag needs more than this many pairs
	CorrelationThreshold float64 // |r| above this counts toward a recommendation
	PValueThreshold      float64
}

// ConfigFrom maps pipeline settings onto analyzer thresholds
func ConfigFrom(p config.PipelineConfig) Config {
	return Config{
		MaxLag:               p.MaxLagDays,
		MinDataPoints:        p.MinDataPoints,
		CorrelationThreshold: p.CorrelationThreshold,
		PValueThreshold:      p.PValueThreshold,
	}
}

// DefaultConfig returns the analyzer defaults
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultPipelineConfig())
}

// Analyzer computes correlation and lag statistics over a batch of effects
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze builds the full summary for a batch of effects
func (a *Analyzer) Analyze(effects []effect.SentimentPriceEffect) analysis.Summary {
	summary := analysis.Summary{
		DatasetSize:  len(effects),
		Overall:      Overall(effects),
		ByLabel:      ByLabel(effects),
		Distribution: Distributions(effects),
		Lag:          a.Lag(effects),
	}

	if len(effects) > 0 {
		start, end := effects[0].EventDate, effects[0].EventDate
		for _, e := range effects[1:] {
			if e.EventDate.Before(start) {
				start = e.EventDate
			}
			if e.EventDate.After(end) {
				end = e.EventDate
			}
		}
		summary.DateRangeStart = &start
		summary.DateRangeEnd = &end
	}

	if summary.Overall.Defined() {
		summary.Interpretation = a.Interpret(summary.Overall)
	}

	ev := log.Info().
		Int("dataset_size", summary.DatasetSize).
		Bool("lag_insufficient", summary.Lag.Insufficient)
	if summary.Overall.Defined() {
		ev = ev.Float64("correlation", *summary.Overall.Coefficient).
			Float64("p_value", *summary.Overall.PValue)
	}
	ev.Msg("Correlation analysis completed")

	return summary
}

// Overall correlates sentiment score with price change across all effects
func Overall(effects []effect.SentimentPriceEffect) analysis.Correlation {
	scores, pcts := columns(effects)
	return Pearson(scores, pcts)
}

// ByLabel returns mean, count and sample std of price change per label, sorted by label
func ByLabel(effects []effect.SentimentPriceEffect) []analysis.LabelStats {
	groups, labels := groupByLabel(effects)

	out := make([]analysis.LabelStats, 0, len(labels))
	for _, label := range labels {
		values := groups[label]
		out = append(out, analysis.LabelStats{
			Label:  label,
			Count:  len(values),
			Mean:   stat.Mean(values, nil),
			StdDev: sampleStd(values),
		})
	}
	return out
}

// Distributions returns mean/median/std/min/max of price change per label, sorted by label
func Distributions(effects []effect.SentimentPriceEffect) []analysis.Distribution {
	groups, labels := groupByLabel(effects)

	out := make([]analysis.Distribution, 0, len(labels))
	for _, label := range labels {
		values := groups[label]
		out = append(out, analysis.Distribution{
			Label:  label,
			Count:  len(values),
			Mean:   stat.Mean(values, nil),
			Median: median(values),
			StdDev: sampleStd(values),
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		})
	}
	return out
}

// Lag correlates score[i] with price change[i-lag] in event-date order for lag = 1..MaxLag
func (a *Analyzer) Lag(effects []effect.SentimentPriceEffect) analysis.LagAnalysis {
	n := len(effects)
	if n <= a.cfg.MaxLag {
		return analysis.LagAnalysis{
			Insufficient: true,
			Reason:       fmt.Sprintf("insufficient data for lag analysis: %d effects, max lag %d", n, a.cfg.MaxLag),
		}
	}

	sorted := make([]effect.SentimentPriceEffect, n)
	copy(sorted, effects)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EventDate.Equal(sorted[j].EventDate) {
			return sorted[i].EventDate.Before(sorted[j].EventDate)
		}
		return sorted[i].EventID < sorted[j].EventID
	})
	scores, pcts := columns(sorted)

	results := make([]analysis.LagCorrelationResult, 0, a.cfg.MaxLag)
	for lag := 1; lag <= a.cfg.MaxLag; lag++ {
		pairs := n - lag
		result := analysis.LagCorrelationResult{Lag: lag, N: pairs}

		if pairs > a.cfg.MinDataPoints {
			c := Pearson(scores[lag:], pcts[:pairs])
			result.Coefficient = c.Coefficient
			result.PValue = c.PValue
		}
		results = append(results, result)
	}

	return analysis.LagAnalysis{Results: results}
}

// =============================================================================
// helpers
// =============================================================================

func columns(effects []effect.SentimentPriceEffect) ([]float64, []float64) {
	scores := make([]float64, len(effects))
	pcts := make([]float64, len(effects))
	for i, e := range effects {
		scores[i] = e.Score
		pcts[i] = e.PriceChangePct
	}
	return scores, pcts
}

func groupByLabel(effects []effect.SentimentPriceEffect) (map[string][]float64, []string) {
	groups := make(map[string][]float64)
	for _, e := range effects {
		label := string(e.Label)
		groups[label] = append(groups[label], e.PriceChangePct)
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return groups, labels
}

// sampleStd is nil below two values
func sampleStd(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	s := stat.StdDev(values, nil)
	if math.IsNaN(s) {
		return nil
	}
	return &s
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
