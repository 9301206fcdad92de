package effect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/infra/database/postgres"
)

// EventRepository PostgreSQL 뉴스 이벤트 저장소 (news_articles)
type EventRepository struct {
	pool *postgres.Pool
}

// NewEventRepository 저장소 생성
func NewEventRepository(pool *postgres.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// ListScored 감성 점수가 있는 최신 이벤트 조회 (newest first)
func (r *EventRepository) ListScored(ctx context.Context, limit int) ([]effect.ScoredNewsEvent, error) {
	query := `
		SELECT id, ticker, published_at, sentiment_score, COALESCE(sentiment_label, '')
		FROM news_articles
		WHERE sentiment_score IS NOT NULL
		ORDER BY published_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query scored events: %w", err)
	}
	defer rows.Close()

	var events []effect.ScoredNewsEvent
	for rows.Next() {
		var (
			id          int64
			ticker      string
			publishedAt time.Time
			score       float64
			label       string
		)
		if err := rows.Scan(&id, &ticker, &publishedAt, &score, &label); err != nil {
			return nil, fmt.Errorf("scan scored event: %w", err)
		}
		parsed, ok := effect.ParseLabel(label)
		if !ok {
			log.Warn().Int64("event_id", id).Str("label", label).Msg("Skipping event with unknown sentiment label")
			continue
		}
		events = append(events, effect.NewScoredNewsEvent(id, ticker, publishedAt, score, parsed))
	}

	return events, rows.Err()
}
