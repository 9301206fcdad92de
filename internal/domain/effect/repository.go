package effect

import (
	"context"
	"time"
)

// =============================================================================
// Event Repository
// =============================================================================

// EventRepository 감성 점수가 매겨진 뉴스 (news_articles)
type EventRepository interface {
	// ListScored returns the most recent scored events, newest first
	ListScored(ctx context.Context, limit int) ([]ScoredNewsEvent, error)
}

// =============================================================================
// Price History Repository
// =============================================================================

// PriceHistoryRepository 일별 종가 저장소 (stock_prices)
type PriceHistoryRepository interface {
	// LatestOnOrBefore returns the most recent close with date <= date
	LatestOnOrBefore(ctx context.Context, ticker string, date time.Time) (*Bar, error)

	// EarliestAfter returns the earliest close with date > date
	EarliestAfter(ctx context.Context, ticker string, date time.Time) (*Bar, error)

	// UpsertBatch stores daily closes (ingestion side)
	UpsertBatch(ctx context.Context, bars []Bar) (int, error)
}

// =============================================================================
// Effect Repository
// =============================================================================

// EffectRepository 감성-가격 효과 저장소 (sentiment_price_effects)
type EffectRepository interface {
	// ReplaceAll discards every stored effect and inserts effects, all-or-nothing
	ReplaceAll(ctx context.Context, effects []SentimentPriceEffect) error

	// ListByMinScore returns effects with score >= minScore ordered by ticker, then score desc
	ListByMinScore(ctx context.Context, minScore float64) ([]SentimentPriceEffect, error)

	// ListAll returns every stored effect ordered by event date
	ListAll(ctx context.Context) ([]SentimentPriceEffect, error)

	Count(ctx context.Context) (int, error)
}

// =============================================================================
// Market Feed
// =============================================================================

// MarketFeed is the live market-data adapter.
// Implementations may fail or return empty results; callers treat both alike.
type MarketFeed interface {
	// History returns daily bars with start <= date < end, oldest first
	History(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)

	// Quote returns the current quoted price
	Quote(ctx context.Context, ticker string) (float64, error)

	// Recent returns daily bars of the last sessions trading sessions, oldest first.
	// Weekends and holidays still yield the latest completed session.
	Recent(ctx context.Context, ticker string, sessions int) ([]Bar, error)
}
