package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps gorm.DB
type DB struct {
	*gorm.DB
}

// Open opens (or creates) the SQLite database at dsn and migrates the schema.
// dsn may be a file path or a memory DSN such as "file:x?mode=memory&cache=shared".
func Open(dsn string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewZerologAdapter(200 * time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	// SQLite는 단일 writer
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&NewsArticle{}, &StockPrice{}, &EffectRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	// run_id was stored per row by earlier versions
	if m := gdb.Migrator(); m.HasColumn(&EffectRow{}, "run_id") {
		if err := m.DropColumn(&EffectRow{}, "run_id"); err != nil {
			return nil, fmt.Errorf("drop effects run_id: %w", err)
		}
	}

	log.Info().Str("dsn", dsn).Msg("✅ SQLite store opened")

	return &DB{DB: gdb}, nil
}

// Close closes the underlying connection
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ZerologAdapter routes gorm logs to zerolog
type ZerologAdapter struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewZerologAdapter creates a gorm logger that reports errors and slow queries
func NewZerologAdapter(slowThreshold time.Duration) *ZerologAdapter {
	return &ZerologAdapter{level: gormlogger.Warn, slowThreshold: slowThreshold}
}

func (a *ZerologAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *a
	cp.level = level
	return &cp
}

func (a *ZerologAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= gormlogger.Info {
		log.Info().Msgf(msg, args...)
	}
}

func (a *ZerologAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= gormlogger.Warn {
		log.Warn().Msgf(msg, args...)
	}
}

func (a *ZerologAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= gormlogger.Error {
		log.Error().Msgf(msg, args...)
	}
}

func (a *ZerologAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if a.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && a.level >= gormlogger.Error:
		sql, rows := fc()
		log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("SQLite query failed")
	case a.slowThreshold > 0 && elapsed > a.slowThreshold && a.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("Slow SQLite query")
	case a.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("SQLite query")
	}
}

// Ping verifies the connection
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
