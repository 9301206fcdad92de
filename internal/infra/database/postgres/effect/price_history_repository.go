package effect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/infra/database/postgres"
)

// PriceHistoryRepository PostgreSQL 일별 종가 저장소 (stock_prices)
type PriceHistoryRepository struct {
	pool *postgres.Pool
}

// NewPriceHistoryRepository 저장소 생성
func NewPriceHistoryRepository(pool *postgres.Pool) *PriceHistoryRepository {
	return &PriceHistoryRepository{pool: pool}
}

// LatestOnOrBefore date 이하 최신 종가 조회
func (r *PriceHistoryRepository) LatestOnOrBefore(ctx context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	query := `
		SELECT ticker, date, close_price
		FROM stock_prices
		WHERE ticker = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`
	return r.queryOne(ctx, query, ticker, date)
}

// EarliestAfter date 초과 최초 종가 조회
func (r *PriceHistoryRepository) EarliestAfter(ctx context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	query := `
		SELECT ticker, date, close_price
		FROM stock_prices
		WHERE ticker = $1 AND date > $2
		ORDER BY date ASC
		LIMIT 1
	`
	return r.queryOne(ctx, query, ticker, date)
}

func (r *PriceHistoryRepository) queryOne(ctx context.Context, query, ticker string, date time.Time) (*effect.Bar, error) {
	var bar effect.Bar
	err := r.pool.QueryRow(ctx, query, ticker, effect.TruncateDate(date)).Scan(
		&bar.Ticker, &bar.Date, &bar.Close,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, effect.ErrPriceNotFound
		}
		return nil, fmt.Errorf("get close: %w", err)
	}

	bar.Date = effect.TruncateDate(bar.Date)
	return &bar, nil
}

// UpsertBatch 종가 일괄 저장
func (r *PriceHistoryRepository) UpsertBatch(ctx context.Context, bars []effect.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO stock_prices (ticker, date, close_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, date) DO UPDATE SET
			close_price = EXCLUDED.close_price
	`

	queued := 0
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		batch.Queue(query, bar.Ticker, effect.TruncateDate(bar.Date), bar.Close)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := 0
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return count, fmt.Errorf("batch upsert close: %w", err)
		}
		count++
	}

	return count, nil
}
