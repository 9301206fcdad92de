package pricesync

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

// DefaultDays is the number of trailing sessions fetched per ticker
const DefaultDays = 7

// TickerResult 종목별 동기화 결과
type TickerResult struct {
	Ticker  string `json:"ticker"`
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Error   string `json:"error,omitempty"`
}

// Result 동기화 결과
type Result struct {
	Tickers []TickerResult `json:"tickers"`
	Saved   int            `json:"saved"`
	Failed  int            `json:"failed"`
}

// Service backfills the price history store from the market feed
type Service struct {
	feed       effect.MarketFeed
	history    effect.PriceHistoryRepository
	events     effect.EventRepository
	eventLimit int
}

// NewService creates a new price sync service
func NewService(feed effect.MarketFeed, history effect.PriceHistoryRepository, events effect.EventRepository, eventLimit int) *Service {
	return &Service{
		feed:       feed,
		history:    history,
		events:     events,
		eventLimit: eventLimit,
	}
}

// Backfill fetches the closes of the last days trading sessions for each ticker and upserts them.
// An empty ticker list means every ticker of the current scored events.
// Tickers are processed one at a time; a feed failure on one ticker does not stop the rest.
func (s *Service) Backfill(ctx context.Context, tickers []string, days int) (Result, error) {
	if days <= 0 {
		days = DefaultDays
	}

	if len(tickers) == 0 {
		var err error
		tickers, err = s.eventTickers(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	var res Result
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("backfill cancelled: %w", err)
		}

		tr := TickerResult{Ticker: ticker}

		bars, err := s.feed.Recent(ctx, ticker, days)
		if err != nil {
			tr.Error = err.Error()
			res.Failed++
			res.Tickers = append(res.Tickers, tr)
			log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed")
			continue
		}
		tr.Fetched = len(bars)

		for i := range bars {
			bars[i].Ticker = ticker
		}

		saved, err := s.history.UpsertBatch(ctx, bars)
		if err != nil {
			// store 장애는 전체 중단
			return res, fmt.Errorf("upsert %s closes: %w", ticker, err)
		}
		tr.Saved = saved
		res.Saved += saved
		res.Tickers = append(res.Tickers, tr)

		log.Debug().Str("ticker", ticker).Int("fetched", tr.Fetched).Int("saved", saved).Msg("Prices synced")
	}

	log.Info().
		Int("tickers", len(tickers)).
		Int("saved", res.Saved).
		Int("failed", res.Failed).
		Msg("✅ Price backfill completed")

	return res, nil
}

func (s *Service) eventTickers(ctx context.Context) ([]string, error) {
	events, err := s.events.ListScored(ctx, s.eventLimit)
	if err != nil {
		return nil, fmt.Errorf("list scored events: %w", err)
	}
	if len(events) == 0 {
		return nil, effect.ErrNoScoredEvents
	}

	seen := make(map[string]struct{})
	var tickers []string
	for _, ev := range events {
		if _, ok := seen[ev.Ticker]; ok {
			continue
		}
		seen[ev.Ticker] = struct{}{}
		tickers = append(tickers, ev.Ticker)
	}
	sort.Strings(tickers)
	return tickers, nil
}
