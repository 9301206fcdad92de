// Package effecttest provides in-memory implementations of the effect repositories
// and market feed for tests.
package effecttest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

// =============================================================================
// Events
// =============================================================================

// Events is a static EventRepository
type Events struct {
	Items []effect.ScoredNewsEvent
	Err   error
}

func (e *Events) ListScored(_ context.Context, limit int) ([]effect.ScoredNewsEvent, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	items := e.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]effect.ScoredNewsEvent, len(items))
	copy(out, items)
	return out, nil
}

// =============================================================================
// Price history
// =============================================================================

// History is an in-memory PriceHistoryRepository
type History struct {
	mu   sync.Mutex
	bars map[string][]effect.Bar
	Err  error
}

// NewHistory creates a store seeded with closes, given as ticker -> date -> close
func NewHistory(closes map[string]map[string]float64) *History {
	h := &History{bars: make(map[string][]effect.Bar)}
	for ticker, byDate := range closes {
		for date, c := range byDate {
			h.bars[ticker] = append(h.bars[ticker], effect.Bar{Ticker: ticker, Date: effect.MustDate(date), Close: c})
		}
		h.sort(ticker)
	}
	return h
}

func (h *History) sort(ticker string) {
	sort.Slice(h.bars[ticker], func(i, j int) bool {
		return h.bars[ticker][i].Date.Before(h.bars[ticker][j].Date)
	})
}

func (h *History) LatestOnOrBefore(_ context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	bars := h.bars[ticker]
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Date.After(date) {
			b := bars[i]
			return &b, nil
		}
	}
	return nil, effect.ErrPriceNotFound
}

func (h *History) EarliestAfter(_ context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	for _, b := range h.bars[ticker] {
		if b.Date.After(date) {
			b := b
			return &b, nil
		}
	}
	return nil, effect.ErrPriceNotFound
}

func (h *History) UpsertBatch(_ context.Context, bars []effect.Bar) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return 0, h.Err
	}
	if h.bars == nil {
		h.bars = make(map[string][]effect.Bar)
	}
	for _, b := range bars {
		replaced := false
		for i, existing := range h.bars[b.Ticker] {
			if existing.Date.Equal(b.Date) {
				h.bars[b.Ticker][i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			h.bars[b.Ticker] = append(h.bars[b.Ticker], b)
		}
		h.sort(b.Ticker)
	}
	return len(bars), nil
}

// =============================================================================
// Effects
// =============================================================================

// Effects is an in-memory EffectRepository. FailReplace makes ReplaceAll fail without touching data.
type Effects struct {
	mu           sync.Mutex
	Items        []effect.SentimentPriceEffect
	ReplaceCalls int
	FailReplace  error
}

func (e *Effects) ReplaceAll(_ context.Context, effects []effect.SentimentPriceEffect) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ReplaceCalls++
	if e.FailReplace != nil {
		return fmt.Errorf("replace effects: %w", errors.Join(effect.ErrPersistence, e.FailReplace))
	}
	e.Items = make([]effect.SentimentPriceEffect, len(effects))
	copy(e.Items, effects)
	return nil
}

func (e *Effects) ListByMinScore(_ context.Context, minScore float64) ([]effect.SentimentPriceEffect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []effect.SentimentPriceEffect
	for _, item := range e.Items {
		if item.Score >= minScore {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (e *Effects) ListAll(_ context.Context) ([]effect.SentimentPriceEffect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]effect.SentimentPriceEffect, len(e.Items))
	copy(out, e.Items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventDate.Before(out[j].EventDate)
	})
	return out, nil
}

func (e *Effects) Count(_ context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Items), nil
}

// =============================================================================
// Market feed
// =============================================================================

// Feed is a scripted MarketFeed. History filters Bars by [start, end); Recent returns the newest RecentBars.
// Every call is recorded in Calls.
type Feed struct {
	mu sync.Mutex

	Bars       []effect.Bar
	HistoryErr error

	QuotePrice float64
	QuoteErr   error

	RecentBars []effect.Bar
	RecentErr  error

	Calls []string
}

func (f *Feed) History(_ context.Context, ticker string, start, end time.Time) ([]effect.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("history:%s..%s", start.Format(effect.DateLayout), end.Format(effect.DateLayout)))
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	var out []effect.Bar
	for _, b := range f.Bars {
		if b.Ticker != "" && b.Ticker != ticker {
			continue
		}
		if !b.Date.Before(start) && b.Date.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *Feed) Quote(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "quote")
	if f.QuoteErr != nil {
		return 0, f.QuoteErr
	}
	if f.QuotePrice <= 0 {
		return 0, effect.ErrNoFeedData
	}
	return f.QuotePrice, nil
}

func (f *Feed) Recent(_ context.Context, _ string, sessions int) ([]effect.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("recent:%d", sessions))
	if f.RecentErr != nil {
		return nil, f.RecentErr
	}
	last := effect.LastSessions(f.RecentBars, sessions)
	out := make([]effect.Bar, len(last))
	copy(out, last)
	return out, nil
}

// CallLog returns a copy of the recorded calls
func (f *Feed) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// Down returns a feed where every call fails
func Down() *Feed {
	err := errors.New("feed unreachable")
	return &Feed{HistoryErr: err, QuoteErr: err, RecentErr: err}
}
