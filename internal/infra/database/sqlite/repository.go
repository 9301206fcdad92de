package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

const insertBatchSize = 200

// =============================================================================
// Events
// =============================================================================

// EventRepository SQLite 뉴스 이벤트 저장소
type EventRepository struct {
	db *DB
}

// NewEventRepository 저장소 생성
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListScored 감성 점수가 있는 최신 이벤트 조회 (newest first)
func (r *EventRepository) ListScored(ctx context.Context, limit int) ([]effect.ScoredNewsEvent, error) {
	var rows []NewsArticle
	err := r.db.WithContext(ctx).
		Where("sentiment_score IS NOT NULL").
		Order("published_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query scored events: %w", err)
	}

	events := make([]effect.ScoredNewsEvent, 0, len(rows))
	for _, a := range rows {
		raw := ""
		if a.SentimentLabel != nil {
			raw = *a.SentimentLabel
		}
		label, ok := effect.ParseLabel(raw)
		if !ok {
			log.Warn().Int64("event_id", a.ID).Str("label", raw).Msg("Skipping event with unknown sentiment label")
			continue
		}
		events = append(events, effect.NewScoredNewsEvent(
			a.ID, a.Ticker, a.PublishedAt, *a.SentimentScore, label,
		))
	}
	return events, nil
}

// =============================================================================
// Price history
// =============================================================================

// PriceHistoryRepository SQLite 일별 종가 저장소
type PriceHistoryRepository struct {
	db *DB
}

// NewPriceHistoryRepository 저장소 생성
func NewPriceHistoryRepository(db *DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// LatestOnOrBefore date 이하 최신 종가 조회
func (r *PriceHistoryRepository) LatestOnOrBefore(ctx context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	return r.first(ctx, "date <= ?", "date DESC", ticker, date)
}

// EarliestAfter date 초과 최초 종가 조회
func (r *PriceHistoryRepository) EarliestAfter(ctx context.Context, ticker string, date time.Time) (*effect.Bar, error) {
	return r.first(ctx, "date > ?", "date ASC", ticker, date)
}

func (r *PriceHistoryRepository) first(ctx context.Context, cond, order, ticker string, date time.Time) (*effect.Bar, error) {
	var row StockPrice
	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Where(cond, date.UTC().Format(effect.DateLayout)).
		Order(order).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, effect.ErrPriceNotFound
		}
		return nil, fmt.Errorf("get close: %w", err)
	}

	d, err := time.Parse(effect.DateLayout, row.Date)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", row.Date, err)
	}
	return &effect.Bar{Ticker: row.Ticker, Date: d, Close: row.ClosePrice}, nil
}

// UpsertBatch 종가 일괄 저장
func (r *PriceHistoryRepository) UpsertBatch(ctx context.Context, bars []effect.Bar) (int, error) {
	rows := make([]StockPrice, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		rows = append(rows, StockPrice{
			Ticker:     b.Ticker,
			Date:       b.Date.UTC().Format(effect.DateLayout),
			ClosePrice: b.Close,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"close_price"}),
		}).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return 0, fmt.Errorf("batch upsert close: %w", err)
	}
	return len(rows), nil
}

// =============================================================================
// Effects
// =============================================================================

// EffectRepository SQLite 감성-가격 효과 저장소
type EffectRepository struct {
	db *DB
}

// NewEffectRepository 저장소 생성
func NewEffectRepository(db *DB) *EffectRepository {
	return &EffectRepository{db: db}
}

// ReplaceAll 전체 교체 (clear + insert, 단일 트랜잭션)
func (r *EffectRepository) ReplaceAll(ctx context.Context, effects []effect.SentimentPriceEffect) error {
	rows := make([]EffectRow, 0, len(effects))
	for _, e := range effects {
		rows = append(rows, toRow(e))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&EffectRow{}).Error; err != nil {
			return fmt.Errorf("clear effects: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert effects: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", effect.ErrPersistence, err)
	}

	log.Debug().Int("rows", len(rows)).Msg("Effects replaced")
	return nil
}

// ListByMinScore score >= minScore 조회 (ticker asc, score desc)
func (r *EffectRepository) ListByMinScore(ctx context.Context, minScore float64) ([]effect.SentimentPriceEffect, error) {
	var rows []EffectRow
	err := r.db.WithContext(ctx).
		Where("score >= ?", minScore).
		Order("ticker ASC").Order("score DESC").Order("news_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	return fromRows(rows)
}

// ListAll 전체 조회 (event_date asc)
func (r *EffectRepository) ListAll(ctx context.Context) ([]effect.SentimentPriceEffect, error) {
	var rows []EffectRow
	err := r.db.WithContext(ctx).
		Order("event_date ASC").Order("news_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	return fromRows(rows)
}

// Count 저장된 효과 수
func (r *EffectRepository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&EffectRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count effects: %w", err)
	}
	return int(n), nil
}

func toRow(e effect.SentimentPriceEffect) EffectRow {
	return EffectRow{
		NewsID:         e.EventID,
		Ticker:         e.Ticker,
		EventDate:      e.EventDate.UTC().Format(effect.DateLayout),
		Score:          e.Score,
		Label:          string(e.Label),
		PriceBefore:    e.PriceBefore,
		PriceAfter:     e.PriceAfter,
		PriceChangePct: e.PriceChangePct,
		BeforeSource:   string(e.BeforeSource),
		AfterSource:    string(e.AfterSource),
		Corrected:      e.Corrected,
		Synthetic:      e.Synthetic,
	}
}

func fromRows(rows []EffectRow) ([]effect.SentimentPriceEffect, error) {
	effects := make([]effect.SentimentPriceEffect, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(effect.DateLayout, row.EventDate)
		if err != nil {
			return nil, fmt.Errorf("parse event date %q: %w", row.EventDate, err)
		}
		effects = append(effects, effect.SentimentPriceEffect{
			EventID:        row.NewsID,
			Ticker:         row.Ticker,
			EventDate:      date,
			Score:          row.Score,
			Label:          effect.Label(row.Label),
			PriceBefore:    row.PriceBefore,
			PriceAfter:     row.PriceAfter,
			PriceChangePct: row.PriceChangePct,
			BeforeSource:   effect.PriceSource(row.BeforeSource),
			AfterSource:    effect.PriceSource(row.AfterSource),
			Corrected:      row.Corrected,
			Synthetic:      row.Synthetic,
		})
	}
	return effects, nil
}
