package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/pkg/config"
	applogger "github.com/wonny/marketpulse/internal/pkg/logger"
)

// Pool wraps pgxpool.Pool
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new PostgreSQL connection pool
// SSOT: config.Database.URL에서만 연결 정보를 가져옴
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	// Parse config from DATABASE_URL (SSOT)
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Str("user", poolConfig.ConnConfig.User).
		Msg("Connecting to PostgreSQL...")

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Setup query logger (if file logging enabled)
	if cfg.Logging.FileEnabled {
		queryLogger := applogger.NewFileLogger(
			cfg.Logging.FilePath,
			"query",
			cfg.Logging.RotationSize,
			cfg.Logging.RetentionDays,
		)

		if cfg.Logging.Level == "debug" {
			poolConfig.ConnConfig.Tracer = NewStatementTracer(queryLogger, cfg.Database.SlowQuery)
		} else {
			logLevel := tracelog.LogLevelInfo
			if cfg.Logging.Level == "warn" {
				logLevel = tracelog.LogLevelWarn
			} else if cfg.Logging.Level == "error" {
				logLevel = tracelog.LogLevelError
			}
			poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
				Logger:   newTracelogAdapter(queryLogger),
				LogLevel: logLevel,
			}
		}
	}

	// Connect
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Ping to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("✅ PostgreSQL connected successfully")

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool
func (p *Pool) Close() {
	log.Info().Msg("Closing PostgreSQL connection pool...")
	p.Pool.Close()
}
