package effect

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/infra/database/postgres"
)

// replaceLockKey serializes writers of sentiment_price_effects
const replaceLockKey int64 = 0x6d70_6566 // "mpef"

var effectColumns = []string{
	"news_id", "ticker", "event_date", "score", "label",
	"price_before", "price_after", "price_change_pct",
	"before_source", "after_source", "corrected", "synthetic",
}

const selectEffects = `
	SELECT news_id, ticker, event_date, score, label,
		price_before, price_after, price_change_pct,
		before_source, after_source, corrected, synthetic
	FROM sentiment_price_effects
`

// EffectRepository PostgreSQL 감성-가격 효과 저장소 (sentiment_price_effects)
type EffectRepository struct {
	pool *postgres.Pool
}

// NewEffectRepository 저장소 생성
func NewEffectRepository(pool *postgres.Pool) *EffectRepository {
	return &EffectRepository{pool: pool}
}

// ReplaceAll 전체 교체 (clear + insert, 단일 트랜잭션)
func (r *EffectRepository) ReplaceAll(ctx context.Context, effects []effect.SentimentPriceEffect) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int("effects", len(effects)).Msg("Rollback failed")
			}
		}
	}()

	// 트랜잭션 종료 시 자동 해제
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, replaceLockKey); err != nil {
		return persistErr("acquire replace lock", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM sentiment_price_effects`); err != nil {
		return persistErr("clear effects", err)
	}

	rows := make([][]any, 0, len(effects))
	for _, e := range effects {
		rows = append(rows, []any{
			e.EventID, e.Ticker, e.EventDate, e.Score, string(e.Label),
			e.PriceBefore, e.PriceAfter, e.PriceChangePct,
			string(e.BeforeSource), string(e.AfterSource), e.Corrected, e.Synthetic,
		})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"sentiment_price_effects"},
		effectColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return persistErr("copy effects", err)
	}
	if int(n) != len(effects) {
		err = fmt.Errorf("copied %d of %d rows", n, len(effects))
		return persistErr("copy effects", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return persistErr("commit", err)
	}

	log.Debug().Int64("rows", n).Msg("Effects replaced")
	return nil
}

// ListByMinScore score >= minScore 조회 (ticker asc, score desc)
func (r *EffectRepository) ListByMinScore(ctx context.Context, minScore float64) ([]effect.SentimentPriceEffect, error) {
	query := selectEffects + `
		WHERE score >= $1
		ORDER BY ticker ASC, score DESC, news_id ASC
	`
	return r.list(ctx, query, minScore)
}

// ListAll 전체 조회 (event_date asc)
func (r *EffectRepository) ListAll(ctx context.Context) ([]effect.SentimentPriceEffect, error) {
	query := selectEffects + `
		ORDER BY event_date ASC, news_id ASC
	`
	return r.list(ctx, query)
}

// Count 저장된 효과 수
func (r *EffectRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sentiment_price_effects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count effects: %w", err)
	}
	return n, nil
}

func (r *EffectRepository) list(ctx context.Context, query string, args ...any) ([]effect.SentimentPriceEffect, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	defer rows.Close()

	var effects []effect.SentimentPriceEffect
	for rows.Next() {
		var e effect.SentimentPriceEffect
		var label, before, afterSrc string
		if err := rows.Scan(
			&e.EventID, &e.Ticker, &e.EventDate, &e.Score, &label,
			&e.PriceBefore, &e.PriceAfter, &e.PriceChangePct,
			&before, &afterSrc, &e.Corrected, &e.Synthetic,
		); err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}
		e.Label = effect.Label(label)
		e.BeforeSource = effect.PriceSource(before)
		e.AfterSource = effect.PriceSource(afterSrc)
		e.EventDate = effect.TruncateDate(e.EventDate)
		effects = append(effects, e)
	}

	return effects, rows.Err()
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, effect.ErrPersistence, err)
}
