package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketpulse/internal/domain/analysis"
	"github.com/wonny/marketpulse/internal/domain/effect"
	effectsvc "github.com/wonny/marketpulse/internal/service/effect"
)

func groups() []effectsvc.TickerAlerts {
	return []effectsvc.TickerAlerts{
		{Ticker: "AAPL", Effects: []effect.SentimentPriceEffect{
			{EventID: 3, Ticker: "AAPL", EventDate: effect.MustDate("2024-01-12"), Score: 0.97, Label: effect.LabelPositive,
				PriceBefore: 150, PriceAfter: 150.01, PriceChangePct: 0.0067,
				BeforeSource: effect.SourceFeedWindow, AfterSource: effect.SourceSynthetic, Corrected: true, Synthetic: true},
		}},
		{Ticker: "TSLA", Effects: []effect.SentimentPriceEffect{
			{EventID: 1, Ticker: "TSLA", EventDate: effect.MustDate("2024-01-11"), Score: 0.85, Label: effect.LabelNegative,
				PriceBefore: 240, PriceAfter: 228, PriceChangePct: -5,
				BeforeSource: effect.SourceHistory, AfterSource: effect.SourceHistoryAfter},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Markdown")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("html")
	assert.Error(t, err)
}

func TestCountAlerts(t *testing.T) {
	s := CountAlerts(groups())
	assert.Equal(t, AlertStats{Positive: 1, Negative: 1, Total: 2, Tickers: 2}, s)
}

func TestAlerts_Markdown(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, NewWriter(&sb, FormatMarkdown).Alerts(groups(), 0.8))

	out := sb.String()
	assert.Contains(t, out, "## Sentiment alerts (score >= 0.80)")
	assert.Contains(t, out, "### AAPL")
	assert.Contains(t, out, "| Date")
	assert.Contains(t, out, "|---")
	assert.Contains(t, out, "-5.00%")
	assert.Contains(t, out, "(synthetic)")
	assert.Less(t, strings.Index(out, "AAPL"), strings.Index(out, "TSLA"))
}

func TestAlerts_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, NewWriter(&sb, FormatText).Alerts(nil, 0.8))
	assert.Contains(t, sb.String(), "No high sentiment alerts found")
}

func TestAnalysis(t *testing.T) {
	r, p, std := 0.9187, 0.0096, 1.5
	start, end := effect.MustDate("2024-01-08"), effect.MustDate("2024-01-16")

	t.Run("with lag results", func(t *testing.T) {
		s := analysis.Summary{
			DatasetSize:    8,
			DateRangeStart: &start,
			DateRangeEnd:   &end,
			Overall:        analysis.Correlation{Coefficient: &r, PValue: &p, N: 8},
			Distribution:   []analysis.Distribution{{Label: "positive", Count: 4, Mean: 2, Median: 2, StdDev: &std, Min: -1, Max: 5}},
			Lag: analysis.LagAnalysis{Results: []analysis.LagCorrelationResult{
				{Lag: 1, N: 7, Coefficient: &r, PValue: &p},
				{Lag: 3, N: 5},
			}},
			Interpretation: &analysis.Interpretation{
				Strength: analysis.StrengthStrong, Direction: analysis.DirectionPositive,
				Significant: true, Recommended: true, Conclusion: analysis.ConclusionPredictive,
				Recommendation: "Use sentiment for alerts/trading",
			},
		}

		var sb strings.Builder
		require.NoError(t, NewWriter(&sb, FormatMarkdown).Analysis(s))
		out := sb.String()

		assert.Contains(t, out, "0.9187")
		assert.Contains(t, out, "2024-01-08 .. 2024-01-16")
		assert.Contains(t, out, "predictive")
		assert.Contains(t, out, "### Lag correlation")
		assert.Contains(t, out, "n/a", "undefined lag shown as n/a")
	})

	t.Run("insufficient", func(t *testing.T) {
		s := analysis.Summary{
			DatasetSize: 2,
			Lag:         analysis.LagAnalysis{Insufficient: true, Reason: "need more than 3 effects for lag analysis, have 2"},
		}

		var sb strings.Builder
		require.NoError(t, NewWriter(&sb, FormatText).Analysis(s))
		out := sb.String()
		assert.Contains(t, out, "need more than 3 effects")
		assert.NotContains(t, out, "Conclusion")
	})
}
