// Package app wires configuration, stores, feeds and services into one process.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/infra/database/postgres"
	pgeffect "github.com/wonny/marketpulse/internal/infra/database/postgres/effect"
	"github.com/wonny/marketpulse/internal/infra/database/sqlite"
	"github.com/wonny/marketpulse/internal/infra/external/naver"
	"github.com/wonny/marketpulse/internal/infra/external/yahoo"
	"github.com/wonny/marketpulse/internal/infra/feed"
	"github.com/wonny/marketpulse/internal/pkg/config"
	analysissvc "github.com/wonny/marketpulse/internal/service/analysis"
	effectsvc "github.com/wonny/marketpulse/internal/service/effect"
	"github.com/wonny/marketpulse/internal/service/pricesync"
	"github.com/wonny/marketpulse/internal/service/resolver"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Feed providers
const (
	ProviderYahoo = "yahoo"
	ProviderNaver = "naver"
)

// Pinger is implemented by both stores
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores groups the repositories of one backend
type Stores struct {
	Driver  string
	Events  effect.EventRepository
	History effect.PriceHistoryRepository
	Effects effect.EffectRepository
	Pinger  Pinger
	close   func()
}

// App holds the wired services
type App struct {
	Config   *config.Config
	Stores   *Stores
	Feed     effect.MarketFeed // raw feed, errors surface
	Guard    *feed.Guard       // feed used by resolution cascades
	Analyzer *analysissvc.Analyzer
	Effects  *effectsvc.Service
	Prices   *pricesync.Service
}

// New opens the configured store and builds every service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := NewFeed(cfg.Feed)
	if err != nil {
		stores.Close()
		return nil, err
	}
	guard := feed.NewGuard(raw, cfg.Feed.Timeout)

	analyzer := analysissvc.NewAnalyzer(analysissvc.ConfigFrom(cfg.Pipeline))

	svc := effectsvc.NewService(
		stores.Events,
		stores.Effects,
		resolver.New(stores.History, guard),
		analyzer,
		cfg.Pipeline.EventLimit,
		cfg.Pipeline.AlertMinScore,
		effectsvc.WithFeedReset(guard),
	)

	log.Info().
		Str("store", stores.Driver).
		Str("feed", cfg.Feed.Provider).
		Dur("feed_timeout", cfg.Feed.Timeout).
		Int("event_limit", cfg.Pipeline.EventLimit).
		Msg("✅ Services wired")

	return &App{
		Config:   cfg,
		Stores:   stores,
		Feed:     raw,
		Guard:    guard,
		Analyzer: analyzer,
		Effects:  svc,
		Prices:   pricesync.NewService(raw, stores.History, stores.Events, cfg.Pipeline.EventLimit),
	}, nil
}

// Close releases the store
func (a *App) Close() {
	a.Stores.Close()
}

// OpenStores opens the repositories selected by STORE_DRIVER
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Stores{
			Driver:  DriverPostgres,
			Events:  pgeffect.NewEventRepository(pool),
			History: pgeffect.NewPriceHistoryRepository(pool),
			Effects: pgeffect.NewEffectRepository(pool),
			Pinger:  pool,
			close:   pool.Close,
		}, nil

	case DriverSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:  DriverSQLite,
			Events:  sqlite.NewEventRepository(db),
			History: sqlite.NewPriceHistoryRepository(db),
			Effects: sqlite.NewEffectRepository(db),
			Pinger:  db,
			close: func() {
				if err := db.Close(); err != nil {
					log.Warn().Err(err).Msg("SQLite close failed")
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (postgres, sqlite)", cfg.Store.Driver)
	}
}

// Close releases the underlying connection
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewFeed builds the market feed selected by FEED_PROVIDER
func NewFeed(cfg config.FeedConfig) (effect.MarketFeed, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderYahoo:
		opts := []yahoo.ClientOption{yahoo.WithRateLimit(cfg.RateLimit)}
		if cfg.YahooBaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(cfg.YahooBaseURL))
		}
		return yahoo.NewClient(opts...), nil

	case ProviderNaver:
		opts := []naver.ClientOption{
			naver.WithRateLimit(cfg.RateLimit),
			naver.WithTimeout(cfg.Timeout),
		}
		if cfg.NaverBaseURL != "" {
			opts = append(opts, naver.WithBaseURL(cfg.NaverBaseURL))
		}
		return naver.NewClient(opts...), nil

	default:
		return nil, fmt.Errorf("unknown FEED_PROVIDER %q (yahoo, naver)", cfg.Provider)
	}
}
