package effect

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date layout used across stores and feeds
const DateLayout = "2006-01-02"

// =============================================================================
// Events
// =============================================================================

// Label 감성 라벨
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// ParseLabel normalizes a stored label; ok is false for empty or unknown values
func ParseLabel(raw string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(raw)))
	return l, l.IsValid()
}

// IsValid checks if label is one of the known labels
func (l Label) IsValid() bool {
	switch l {
	case LabelPositive, LabelNeutral, LabelNegative:
		return true
	default:
		return false
	}
}

// ScoredNewsEvent is a sentiment-scored headline tied to one ticker and one date.
// Produced upstream (news_articles); never mutated here.
type ScoredNewsEvent struct {
	ID          int64     `json:"id" db:"id"`
	Ticker      string    `json:"ticker" db:"ticker"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	EventDate   time.Time `json:"event_date"`
	Score       float64   `json:"score" db:"sentiment_score"`
	Label       Label     `json:"label" db:"sentiment_label"`
}

// NewScoredNewsEvent builds an event, truncating the publish timestamp to its calendar date (UTC)
func NewScoredNewsEvent(id int64, ticker string, publishedAt time.Time, score float64, label Label) ScoredNewsEvent {
	return ScoredNewsEvent{
		ID:          id,
		Ticker:      ticker,
		PublishedAt: publishedAt,
		EventDate:   TruncateDate(publishedAt),
		Score:       score,
		Label:       label,
	}
}

// TruncateDate returns the UTC calendar date of t at midnight
func TruncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MustDate parses a YYYY-MM-DD date, panicking on malformed input. Intended for fixtures.
func MustDate(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// Price observations
// =============================================================================

// Bar is a daily price observation keyed by (ticker, date).
// Open/High/Low are zero when the source only carries closes (price history store).
type Bar struct {
	Ticker string    `json:"ticker" db:"ticker"`
	Date   time.Time `json:"date" db:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close" db:"close_price"`
}

// PriceField selects one value of a bar
type PriceField string

const (
	FieldOpen  PriceField = "open"
	FieldHigh  PriceField = "high"
	FieldLow   PriceField = "low"
	FieldClose PriceField = "close"
)

// DatedValue is one (date, value) point of a single field
type DatedValue struct {
	Date  time.Time
	Value float64
}

// Value returns the requested field of the bar
func (b Bar) Value(f PriceField) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	default:
		return b.Close
	}
}

// Field projects bars onto (date, value) pairs for one field, skipping non-positive values
func Field(bars []Bar, f PriceField) []DatedValue {
	out := make([]DatedValue, 0, len(bars))
	for _, b := range bars {
		v := b.Value(f)
		if v <= 0 {
			continue
		}
		out = append(out, DatedValue{Date: b.Date, Value: v})
	}
	return out
}

// LastSessions returns the newest n bars of an oldest-first slice
func LastSessions(bars []Bar, n int) []Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

// =============================================================================
// Provenance
// =============================================================================

// PriceSource identifies which cascade step produced a price
type PriceSource string

const (
	// price-before
	SourceHistory      PriceSource = "history"
	SourceFeedWindow   PriceSource = "feed_window"
	SourceFeedEarliest PriceSource = "feed_earliest"

	// price-after
	SourceFeedHistory    PriceSource = "feed_history"
	SourceFeedQuote      PriceSource = "feed_quote"
	SourceFeedRecent     PriceSource = "feed_recent"
	SourceHistoryAfter   PriceSource = "history_after"
	SourceBeforeFallback PriceSource = "before_fallback"

	// degenerate-movement correction
	SourceFeedOpen          PriceSource = "feed_open"
	SourceFeedPrevClose     PriceSource = "feed_prev_close"
	SourceFeedNextClose     PriceSource = "feed_next_close"
	SourceIntradayOpenClose PriceSource = "intraday_open_close"
	SourceIntradayRange     PriceSource = "intraday_range"
	SourceSynthetic         PriceSource = "synthetic"
)

// IsLive reports whether the price depends on the time of the call
func (s PriceSource) IsLive() bool {
	return s == SourceFeedQuote || s == SourceFeedRecent
}

// =============================================================================
// Effects
// =============================================================================

// SentimentPriceEffect 감성-가격 효과 (sentiment_price_effects)
type SentimentPriceEffect struct {
	EventID        int64       `json:"event_id" db:"news_id"`
	Ticker         string      `json:"ticker" db:"ticker"`
	EventDate      time.Time   `json:"event_date" db:"event_date"`
	Score          float64     `json:"score" db:"score"`
	Label          Label       `json:"label" db:"label"`
	PriceBefore    float64     `json:"price_before" db:"price_before"`
	PriceAfter     float64     `json:"price_after" db:"price_after"`
	PriceChangePct float64     `json:"price_change_pct" db:"price_change_pct"`
	BeforeSource   PriceSource `json:"before_source" db:"before_source"`
	AfterSource    PriceSource `json:"after_source" db:"after_source"`
	Corrected      bool        `json:"corrected" db:"corrected"`
	Synthetic      bool        `json:"synthetic" db:"synthetic"`
}

// NewEffect builds an effect from a resolved pair, always recomputing the percentage change.
// The result depends only on its inputs, so identical batches store identical rows.
func NewEffect(ev ScoredNewsEvent, res Resolution) (SentimentPriceEffect, error) {
	if res.PriceBefore <= 0 || res.PriceAfter <= 0 {
		return SentimentPriceEffect{}, fmt.Errorf("event %d: %w (before=%v after=%v)",
			ev.ID, ErrInvalidPrice, res.PriceBefore, res.PriceAfter)
	}

	return SentimentPriceEffect{
		EventID:        ev.ID,
		Ticker:         ev.Ticker,
		EventDate:      ev.EventDate,
		Score:          ev.Score,
		Label:          ev.Label,
		PriceBefore:    res.PriceBefore,
		PriceAfter:     res.PriceAfter,
		PriceChangePct: ChangePct(res.PriceBefore, res.PriceAfter),
		BeforeSource:   res.BeforeSource,
		AfterSource:    res.AfterSource,
		Corrected:      res.Corrected,
		Synthetic:      res.Synthetic,
	}, nil
}

// ChangePct returns (after - before) / before * 100
func ChangePct(before, after float64) float64 {
	return (after - before) / before * 100
}

// Resolution is the final price pair for one event together with its provenance
type Resolution struct {
	PriceBefore  float64     `json:"price_before"`
	PriceAfter   float64     `json:"price_after"`
	BeforeSource PriceSource `json:"before_source"`
	AfterSource  PriceSource `json:"after_source"`
	Corrected    bool        `json:"corrected"` // degenerate pair re-derived
	Synthetic    bool        `json:"synthetic"` // minimal +0.01 movement injected
}

// =============================================================================
// Run summary
// =============================================================================

// RunSummary reports the outcome of one pipeline run
type RunSummary struct {
	RunID      uuid.UUID `json:"run_id"`
	Total      int       `json:"total"`
	Resolved   int       `json:"resolved"`
	Dropped    int       `json:"dropped"`
	Corrected  int       `json:"corrected"`
	Synthetic  int       `json:"synthetic"`
	LiveQuoted int       `json:"live_quoted"` // time-of-call dependent price-after
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
