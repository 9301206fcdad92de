package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/domain/effect/effecttest"
	analysissvc "github.com/wonny/marketpulse/internal/service/analysis"
	"github.com/wonny/marketpulse/internal/service/resolver"
)

var fixedRunID = uuid.MustParse("6f1c1c2e-4a4b-4c8e-9d55-2b7e7f0d9a10")

type countingReset struct{ n int }

func (c *countingReset) Reset() { c.n++ }

func scored(id int64, ticker, date string, score float64, label effect.Label) effect.ScoredNewsEvent {
	return effect.NewScoredNewsEvent(id, ticker, effect.MustDate(date).Add(15*time.Hour), score, label)
}

type fixture struct {
	events  *effecttest.Events
	history *effecttest.History
	feed    *effecttest.Feed
	effects *effecttest.Effects
	reset   *countingReset
	svc     *Service
}

func newFixture(events []effect.ScoredNewsEvent, history *effecttest.History, feed *effecttest.Feed, opts ...Option) *fixture {
	f := &fixture{
		events:  &effecttest.Events{Items: events},
		history: history,
		feed:    feed,
		effects: &effecttest.Effects{},
		reset:   &countingReset{},
	}
	f.svc = NewService(
		f.events,
		f.effects,
		resolver.New(history, feed),
		analysissvc.NewAnalyzer(analysissvc.DefaultConfig()),
		100,
		0.8,
		append([]Option{
			WithFeedReset(f.reset),
			WithRunIDs(func() uuid.UUID { return fixedRunID }),
		}, opts...)...,
	)
	return f
}

func TestRun_ResolvesAndReplaces(t *testing.T) {
	history := effecttest.NewHistory(map[string]map[string]float64{
		"AAPL": {"2024-01-09": 100, "2024-01-12": 105},
	})
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
		scored(2, "MSFT", "2024-01-10", 0.2, effect.LabelNegative), // no price-before anywhere
	}, history, effecttest.Down())

	result, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Effects, 1)
	e := result.Effects[0]
	assert.Equal(t, int64(1), e.EventID)
	assert.Equal(t, 100.0, e.PriceBefore)
	assert.Equal(t, 105.0, e.PriceAfter)
	assert.InDelta(t, 5.0, e.PriceChangePct, 1e-9)

	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Resolved)
	assert.Equal(t, 1, result.Summary.Dropped)
	assert.Equal(t, 0, result.Summary.Synthetic)

	assert.Equal(t, 1, f.effects.ReplaceCalls)
	assert.Equal(t, result.Effects, f.effects.Items)
	assert.Equal(t, 1, f.reset.n)

	require.NotNil(t, result.Analysis.RunID)
	assert.Equal(t, fixedRunID, *result.Analysis.RunID)
	assert.Equal(t, 1, result.Analysis.DatasetSize)
	assert.False(t, result.Analysis.Overall.Defined())
	assert.Same(t, result, f.svc.LastRun())
}

func TestRun_InvariantsHold(t *testing.T) {
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
		scored(2, "AAPL", "2024-01-11", 0.4, effect.LabelNeutral),
		scored(3, "AAPL", "2024-01-12", 0.1, effect.LabelNegative),
	}, effecttest.NewHistory(nil), &effecttest.Feed{
		RecentBars: []effect.Bar{{Date: effect.MustDate("2024-01-09"), Close: 150}},
		QuotePrice: 150,
	})

	result, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Effects, 3)

	for _, e := range result.Effects {
		assert.Greater(t, e.PriceBefore, 0.0)
		assert.Greater(t, e.PriceAfter, 0.0)
		assert.InDelta(t, (e.PriceAfter-e.PriceBefore)/e.PriceBefore*100, e.PriceChangePct, 1e-9)
		assert.False(t, resolver.IsDegenerate(e.PriceBefore, e.PriceAfter))
		assert.True(t, e.Synthetic)
	}

	assert.Equal(t, 3, result.Summary.Corrected)
	assert.Equal(t, 3, result.Summary.Synthetic)
	assert.Equal(t, 0, result.Summary.LiveQuoted, "synthetic replaces the quoted price-after")
}

func TestRun_LiveQuotedCounted(t *testing.T) {
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
	}, effecttest.NewHistory(map[string]map[string]float64{"AAPL": {"2024-01-09": 100}}), &effecttest.Feed{QuotePrice: 101})

	result, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, effect.SourceFeedQuote, result.Effects[0].AfterSource)
	assert.Equal(t, 1, result.Summary.LiveQuoted)
}

func TestRun_Idempotent(t *testing.T) {
	history := effecttest.NewHistory(map[string]map[string]float64{
		"AAPL": {"2024-01-09": 100, "2024-01-12": 105},
		"TSLA": {"2024-01-08": 240, "2024-01-11": 228},
	})
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
		scored(2, "TSLA", "2024-01-09", 0.1, effect.LabelNegative),
	}, history, effecttest.Down(), WithRunIDs(uuid.New))

	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	stored := append([]effect.SentimentPriceEffect(nil), f.effects.Items...)

	second, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Summary.RunID, second.Summary.RunID)
	assert.Equal(t, first.Effects, second.Effects)
	assert.Equal(t, stored, f.effects.Items)
	assert.Equal(t, 2, f.effects.ReplaceCalls)
}

func TestRun_PersistenceFailureKeepsPreviousEffects(t *testing.T) {
	history := effecttest.NewHistory(map[string]map[string]float64{
		"AAPL": {"2024-01-09": 100, "2024-01-12": 105},
	})
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
	}, history, effecttest.Down())

	previous := []effect.SentimentPriceEffect{{EventID: 99, Ticker: "OLD", PriceBefore: 1, PriceAfter: 2}}
	f.effects.Items = previous
	f.effects.FailReplace = errors.New("connection reset")

	result, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, effect.ErrPersistence)
	assert.Equal(t, previous, f.effects.Items)
	assert.Nil(t, f.svc.LastRun())
}

func TestRun_NoEvents(t *testing.T) {
	f := newFixture(nil, effecttest.NewHistory(nil), effecttest.Down())

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, effect.ErrNoScoredEvents)
	assert.Equal(t, 0, f.effects.ReplaceCalls)
}

func TestRun_CancelledBeforeReplace(t *testing.T) {
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
	}, effecttest.NewHistory(nil), effecttest.Down())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.effects.ReplaceCalls)
}

func TestMaterialize(t *testing.T) {
	ev := scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive)
	outcomes := []Outcome{
		{Event: ev, Resolution: effect.Resolution{PriceBefore: 100, PriceAfter: 95}},
		{Event: scored(2, "AAPL", "2024-01-10", 0.3, effect.LabelNeutral), Err: effect.ErrUnresolvedPriceBefore},
		{Event: scored(3, "AAPL", "2024-01-10", 0.3, effect.LabelNeutral), Resolution: effect.Resolution{PriceBefore: 0, PriceAfter: 95}},
	}

	effects, dropped := Materialize(outcomes)
	require.Len(t, effects, 1)
	assert.Equal(t, 2, dropped)
	assert.InDelta(t, -5.0, effects[0].PriceChangePct, 1e-9)

	again, _ := Materialize(outcomes)
	assert.Equal(t, effects, again)
}

func TestAlerts(t *testing.T) {
	f := newFixture(nil, effecttest.NewHistory(nil), effecttest.Down())
	f.effects.Items = []effect.SentimentPriceEffect{
		{EventID: 1, Ticker: "TSLA", Score: 0.85},
		{EventID: 2, Ticker: "AAPL", Score: 0.81},
		{EventID: 3, Ticker: "AAPL", Score: 0.97},
		{EventID: 4, Ticker: "AAPL", Score: 0.40},
	}

	groups, err := f.svc.Alerts(context.Background(), f.svc.AlertMinScore())
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, "AAPL", groups[0].Ticker)
	require.Len(t, groups[0].Effects, 2)
	assert.Equal(t, int64(3), groups[0].Effects[0].EventID)
	assert.Equal(t, int64(2), groups[0].Effects[1].EventID)
	assert.Equal(t, "TSLA", groups[1].Ticker)

	groups, err = f.svc.Alerts(context.Background(), 0.3)
	require.NoError(t, err)
	assert.Len(t, groups[0].Effects, 3)

	t.Run("zero threshold returns everything", func(t *testing.T) {
		groups, err := f.svc.Alerts(context.Background(), 0)
		require.NoError(t, err)
		total := 0
		for _, g := range groups {
			total += len(g.Effects)
		}
		assert.Equal(t, 4, total)
	})
}

func TestStatus(t *testing.T) {
	history := effecttest.NewHistory(map[string]map[string]float64{
		"AAPL": {"2024-01-09": 100, "2024-01-12": 105},
	})
	f := newFixture([]effect.ScoredNewsEvent{
		scored(1, "AAPL", "2024-01-10", 0.9, effect.LabelPositive),
	}, history, effecttest.Down())

	st, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.StoredEffects)
	assert.Nil(t, st.LastRun)

	_, err = f.svc.Run(context.Background())
	require.NoError(t, err)

	st, err = f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.StoredEffects)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, fixedRunID, st.LastRun.RunID)
	assert.False(t, st.Running)

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DatasetSize)
}

func TestSummary_Empty(t *testing.T) {
	f := newFixture(nil, effecttest.NewHistory(nil), effecttest.Down())

	_, err := f.svc.Summary(context.Background())
	assert.ErrorIs(t, err, effect.ErrInsufficientData)
}
