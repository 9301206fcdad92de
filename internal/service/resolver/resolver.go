package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/marketpulse/internal/domain/effect"
)

const (
	day = 24 * time.Hour

	// trailing live window (sessions) used when the history store has nothing on or before the event
	beforeWindowSessions = 30
	// forward window for the first price-after attempt
	afterWindow = 3 * day
	// last trading session for "most recent close"
	recentSessions = 1
)

// Pair is a corrected before/after pair. Empty sources mean "unchanged".
type Pair struct {
	Before       float64
	After        float64
	BeforeSource effect.PriceSource
	AfterSource  effect.PriceSource
}

// Resolver pairs scored news events with price-before / price-after observations
type Resolver struct {
	history effect.PriceHistoryRepository
	feed    effect.MarketFeed

	beforeSteps     []Step[float64]
	afterSteps      []Step[float64]
	correctionSteps []Step[Pair]
}

// New creates a resolver over the price history store and the live market feed
func New(history effect.PriceHistoryRepository, feed effect.MarketFeed) *Resolver {
	r := &Resolver{
		history: history,
		feed:    feed,
	}
	r.beforeSteps = r.priceBeforeCascade()
	r.afterSteps = r.priceAfterCascade()
	r.correctionSteps = r.correctionCascade()
	return r
}

// Resolve runs price-before, price-after and, for degenerate pairs, the corrector.
// Returns ErrUnresolvedPriceBefore when no price-before exists; every other source failure
// falls through to the next step.
func (r *Resolver) Resolve(ctx context.Context, ev effect.ScoredNewsEvent) (effect.Resolution, error) {
	in := Input{Event: ev}

	before, beforeSrc, ok := r.ResolveBefore(ctx, in)
	if !ok {
		return effect.Resolution{}, fmt.Errorf("event %d (%s %s): %w",
			ev.ID, ev.Ticker, ev.EventDate.Format(effect.DateLayout), effect.ErrUnresolvedPriceBefore)
	}
	in.PriceBefore = before

	after, afterSrc := r.ResolveAfter(ctx, in)
	in.PriceAfter = after

	res := effect.Resolution{
		PriceBefore:  before,
		PriceAfter:   after,
		BeforeSource: beforeSrc,
		AfterSource:  afterSrc,
	}

	if !IsDegenerate(before, after) {
		return res, nil
	}

	log.Debug().
		Str("ticker", ev.Ticker).
		Int64("event_id", ev.ID).
		Float64("price", before).
		Msg("Degenerate price pair, correcting")

	pair, step := r.Correct(ctx, in)
	res.PriceBefore = pair.Before
	res.PriceAfter = pair.After
	if pair.BeforeSource != "" {
		res.BeforeSource = pair.BeforeSource
	}
	if pair.AfterSource != "" {
		res.AfterSource = pair.AfterSource
	}
	res.Corrected = true
	res.Synthetic = step == effect.SourceSynthetic

	if res.Synthetic {
		log.Warn().
			Str("ticker", ev.Ticker).
			Int64("event_id", ev.ID).
			Float64("price_before", res.PriceBefore).
			Float64("price_after", res.PriceAfter).
			Msg("No market movement found, synthetic minimal movement applied")
	}

	return res, nil
}

// ResolveBefore runs the price-before cascade
func (r *Resolver) ResolveBefore(ctx context.Context, in Input) (float64, effect.PriceSource, bool) {
	return runCascade(ctx, "price_before", in, r.beforeSteps)
}

// ResolveAfter runs the price-after cascade. It always succeeds.
func (r *Resolver) ResolveAfter(ctx context.Context, in Input) (float64, effect.PriceSource) {
	price, src, ok := runCascade(ctx, "price_after", in, r.afterSteps)
	if !ok {
		return in.PriceBefore, effect.SourceBeforeFallback
	}
	return price, src
}

// Correct runs the degenerate-movement cascade. It always succeeds.
func (r *Resolver) Correct(ctx context.Context, in Input) (Pair, effect.PriceSource) {
	pair, src, ok := runCascade(ctx, "correction", in, r.correctionSteps)
	if !ok {
		return syntheticPair(in.PriceBefore), effect.SourceSynthetic
	}
	return pair, src
}

// =============================================================================
// Price-before cascade
// =============================================================================

func (r *Resolver) priceBeforeCascade() []Step[float64] {
	return []Step[float64]{
		{Source: effect.SourceHistory, Run: r.historyOnOrBefore},
		{Source: effect.SourceFeedWindow, Run: r.feedWindowOnOrBefore},
		{Source: effect.SourceFeedEarliest, Run: r.feedWindowEarliest},
	}
}

func (r *Resolver) historyOnOrBefore(ctx context.Context, in Input) (float64, bool) {
	bar, err := r.history.LatestOnOrBefore(ctx, in.Event.Ticker, in.Event.EventDate)
	if err != nil {
		logSourceError(err, in, effect.SourceHistory)
		return 0, false
	}
	if bar == nil {
		return 0, false
	}
	return positive(bar.Close)
}

func (r *Resolver) feedWindowOnOrBefore(ctx context.Context, in Input) (float64, bool) {
	bars := r.recent(ctx, in, beforeWindowSessions, effect.SourceFeedWindow)

	var latest *effect.Bar
	for i := range bars {
		b := &bars[i]
		if b.Close <= 0 || b.Date.After(in.Event.EventDate) {
			continue
		}
		if latest == nil || b.Date.After(latest.Date) {
			latest = b
		}
	}
	if latest == nil {
		return 0, false
	}
	return latest.Close, true
}

// feedWindowEarliest covers events that predate the live window
func (r *Resolver) feedWindowEarliest(ctx context.Context, in Input) (float64, bool) {
	bars := r.recent(ctx, in, beforeWindowSessions, effect.SourceFeedEarliest)

	var earliest *effect.Bar
	for i := range bars {
		b := &bars[i]
		if b.Close <= 0 {
			continue
		}
		if earliest == nil || b.Date.Before(earliest.Date) {
			earliest = b
		}
	}
	if earliest == nil {
		return 0, false
	}
	return earliest.Close, true
}

// =============================================================================
// Price-after cascade
// =============================================================================

func (r *Resolver) priceAfterCascade() []Step[float64] {
	return []Step[float64]{
		{Source: effect.SourceFeedHistory, Run: r.feedForwardClose},
		{Source: effect.SourceFeedQuote, Run: r.feedQuote},
		{Source: effect.SourceFeedRecent, Run: r.feedRecentClose},
		{Source: effect.SourceHistoryAfter, Run: r.historyAfter},
		{Source: effect.SourceBeforeFallback, Run: beforeFallback},
	}
}

func (r *Resolver) feedForwardClose(ctx context.Context, in Input) (float64, bool) {
	d := in.Event.EventDate
	return first(r.history1(ctx, in, d, d.Add(afterWindow), effect.FieldClose, effect.SourceFeedHistory))
}

func (r *Resolver) feedQuote(ctx context.Context, in Input) (float64, bool) {
	price, err := r.feed.Quote(ctx, in.Event.Ticker)
	if err != nil {
		logSourceError(err, in, effect.SourceFeedQuote)
		return 0, false
	}
	return positive(price)
}

func (r *Resolver) feedRecentClose(ctx context.Context, in Input) (float64, bool) {
	bars := r.recent(ctx, in, recentSessions, effect.SourceFeedRecent)
	closes := effect.Field(bars, effect.FieldClose)
	if len(closes) == 0 {
		return 0, false
	}
	return closes[len(closes)-1].Value, true
}

func (r *Resolver) historyAfter(ctx context.Context, in Input) (float64, bool) {
	bar, err := r.history.EarliestAfter(ctx, in.Event.Ticker, in.Event.EventDate)
	if err != nil {
		logSourceError(err, in, effect.SourceHistoryAfter)
		return 0, false
	}
	if bar == nil {
		return 0, false
	}
	return positive(bar.Close)
}

func beforeFallback(_ context.Context, in Input) (float64, bool) {
	return positive(in.PriceBefore)
}

// =============================================================================
// Degenerate-movement cascade
// =============================================================================

func (r *Resolver) correctionCascade() []Step[Pair] {
	return []Step[Pair]{
		{Source: effect.SourceFeedOpen, Run: r.openVsAfter},
		{Source: effect.SourceFeedPrevClose, Run: r.prevCloseVsAfter},
		{Source: effect.SourceFeedNextClose, Run: r.beforeVsNextClose},
		{Source: effect.SourceIntradayOpenClose, Run: r.intradayScan},
	}
}

// openVsAfter substitutes the event day's opening price for price-before
func (r *Resolver) openVsAfter(ctx context.Context, in Input) (Pair, bool) {
	d := in.Event.EventDate
	open, ok := first(r.history1(ctx, in, d, d.Add(day), effect.FieldOpen, effect.SourceFeedOpen))
	if !ok || !differsBy(open, in.PriceAfter, Epsilon) {
		return Pair{}, false
	}
	return Pair{Before: open, After: in.PriceAfter, BeforeSource: effect.SourceFeedOpen}, true
}

// prevCloseVsAfter substitutes the previous calendar day's close for price-before
func (r *Resolver) prevCloseVsAfter(ctx context.Context, in Input) (Pair, bool) {
	prev := in.Event.EventDate.Add(-day)
	closePrice, ok := first(r.history1(ctx, in, prev, prev.Add(day), effect.FieldClose, effect.SourceFeedPrevClose))
	if !ok || !differsBy(closePrice, in.PriceAfter, Epsilon) {
		return Pair{}, false
	}
	return Pair{Before: closePrice, After: in.PriceAfter, BeforeSource: effect.SourceFeedPrevClose}, true
}

// beforeVsNextClose substitutes the next calendar day's close for price-after
func (r *Resolver) beforeVsNextClose(ctx context.Context, in Input) (Pair, bool) {
	next := in.Event.EventDate.Add(day)
	closePrice, ok := first(r.history1(ctx, in, next, next.Add(2*day), effect.FieldClose, effect.SourceFeedNextClose))
	if !ok || !differsBy(in.PriceBefore, closePrice, Epsilon) {
		return Pair{}, false
	}
	return Pair{Before: in.PriceBefore, After: closePrice, AfterSource: effect.SourceFeedNextClose}, true
}

// intradayScan walks [d-1, d+2) and takes the first day with a material open→close or low→high move
func (r *Resolver) intradayScan(ctx context.Context, in Input) (Pair, bool) {
	d := in.Event.EventDate
	bars, err := r.feed.History(ctx, in.Event.Ticker, d.Add(-day), d.Add(2*day))
	if err != nil {
		logSourceError(err, in, effect.SourceIntradayOpenClose)
		return Pair{}, false
	}

	for _, b := range bars {
		if b.Open > 0 && b.Close > 0 && differsBy(b.Open, b.Close, openCloseThreshold) {
			return Pair{
				Before:       b.Open,
				After:        b.Close,
				BeforeSource: effect.SourceIntradayOpenClose,
				AfterSource:  effect.SourceIntradayOpenClose,
			}, true
		}
		if b.Low > 0 && b.High > 0 && differsBy(b.Low, b.High, rangeThreshold) {
			return Pair{
				Before:       b.Low,
				After:        b.High,
				BeforeSource: effect.SourceIntradayRange,
				AfterSource:  effect.SourceIntradayRange,
			}, true
		}
	}
	return Pair{}, false
}

func syntheticPair(before float64) Pair {
	return Pair{
		Before:      before,
		After:       syntheticAfter(before),
		AfterSource: effect.SourceSynthetic,
	}
}

// =============================================================================
// helpers
// =============================================================================

// history1 is historical(ticker, start, end, field)
func (r *Resolver) history1(ctx context.Context, in Input, start, end time.Time, field effect.PriceField, src effect.PriceSource) []effect.DatedValue {
	bars, err := r.feed.History(ctx, in.Event.Ticker, start, end)
	if err != nil {
		logSourceError(err, in, src)
		return nil
	}
	return effect.Field(bars, field)
}

func (r *Resolver) recent(ctx context.Context, in Input, sessions int, src effect.PriceSource) []effect.Bar {
	bars, err := r.feed.Recent(ctx, in.Event.Ticker, sessions)
	if err != nil {
		logSourceError(err, in, src)
		return nil
	}
	return bars
}

func first(values []effect.DatedValue) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[0].Value, true
}

func positive(v float64) (float64, bool) {
	return v, v > 0
}

func logSourceError(err error, in Input, src effect.PriceSource) {
	event := log.Debug()
	if !effect.IsSourceUnavailable(err) {
		event = log.Warn()
	}
	event.Err(err).
		Str("ticker", in.Event.Ticker).
		Int64("event_id", in.Event.ID).
		Str("source", string(src)).
		Msg("Price source unavailable, trying next step")
}
