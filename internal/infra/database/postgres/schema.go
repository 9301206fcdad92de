package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema 테이블 정의 (idempotent)
var schema = []string{
	`CREATE TABLE IF NOT EXISTS news_articles (
		id              BIGSERIAL PRIMARY KEY,
		ticker          TEXT NOT NULL,
		headline        TEXT NOT NULL,
		source          TEXT,
		url             TEXT UNIQUE,
		published_at    TIMESTAMPTZ NOT NULL,
		sentiment_score DOUBLE PRECISION,
		sentiment_label TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_articles_scored
		ON news_articles (published_at DESC) WHERE sentiment_score IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS stock_prices (
		ticker      TEXT NOT NULL,
		date        DATE NOT NULL,
		close_price DOUBLE PRECISION NOT NULL CHECK (close_price > 0),
		PRIMARY KEY (ticker, date)
	)`,

	`CREATE TABLE IF NOT EXISTS sentiment_price_effects (
		news_id          BIGINT PRIMARY KEY,
		ticker           TEXT NOT NULL,
		event_date       DATE NOT NULL,
		score            DOUBLE PRECISION NOT NULL,
		label            TEXT NOT NULL,
		price_before     DOUBLE PRECISION NOT NULL CHECK (price_before > 0),
		price_after      DOUBLE PRECISION NOT NULL CHECK (price_after > 0),
		price_change_pct DOUBLE PRECISION NOT NULL,
		before_source    TEXT NOT NULL,
		after_source     TEXT NOT NULL,
		corrected        BOOLEAN NOT NULL DEFAULT FALSE,
		synthetic        BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	// run_id was stored per row by earlier versions
	`ALTER TABLE sentiment_price_effects DROP COLUMN IF EXISTS run_id`,
	`CREATE INDEX IF NOT EXISTS idx_effects_ticker_score
		ON sentiment_price_effects (ticker, score DESC)`,
}

// Migrate creates the tables if they do not exist
func (p *Pool) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}

	log.Info().Int("statements", len(schema)).Msg("Schema migrated")
	return nil
}
