package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	applogger "github.com/wonny/marketpulse/internal/pkg/logger"
)

// maxLoggedSQL 로그에 남기는 SQL 최대 길이
const maxLoggedSQL = 240

type traceKey struct{}

type traceStart struct {
	at    time.Time
	kind  string
	table string
	sql   string
}

// StatementTracer logs statement timing for Exec/Query and CopyFrom.
// Effect snapshots are bulk-loaded with CopyFrom, so that path is traced too.
type StatementTracer struct {
	logger zerolog.Logger
	slow   time.Duration
	now    func() time.Time
}

// NewStatementTracer slow <= 0 이면 slow 경고 비활성
func NewStatementTracer(logger zerolog.Logger, slow time.Duration) *StatementTracer {
	return &StatementTracer{logger: logger, slow: slow, now: time.Now}
}

// TraceQueryStart implements pgx.QueryTracer
func (t *StatementTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{
		at:   t.now(),
		kind: statementKind(data.SQL),
		sql:  compactSQL(data.SQL),
	})
}

// TraceQueryEnd implements pgx.QueryTracer
func (t *StatementTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	t.finish(ctx, data.CommandTag.RowsAffected(), data.Err)
}

// TraceCopyFromStart implements pgx.CopyFromTracer
func (t *StatementTracer) TraceCopyFromStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceCopyFromStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{
		at:    t.now(),
		kind:  "COPY",
		table: data.TableName.Sanitize(),
	})
}

// TraceCopyFromEnd implements pgx.CopyFromTracer
func (t *StatementTracer) TraceCopyFromEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceCopyFromEndData) {
	t.finish(ctx, data.CommandTag.RowsAffected(), data.Err)
}

func (t *StatementTracer) finish(ctx context.Context, rows int64, err error) {
	st, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		st = traceStart{at: t.now(), kind: "UNKNOWN"}
	}
	elapsed := t.now().Sub(st.at)

	var event *zerolog.Event
	msg := "Statement executed"
	switch {
	case err != nil:
		event = t.logger.Error().Err(err)
		msg = "Statement failed"
	case t.slow > 0 && elapsed >= t.slow:
		event = t.logger.Warn().Dur("slow_threshold", t.slow)
		msg = "Slow statement"
	default:
		event = t.logger.Debug()
	}

	if id := applogger.RequestID(ctx); id != "" {
		event = event.Str("request_id", id)
	}
	if st.table != "" {
		event = event.Str("table", st.table)
	}
	if st.sql != "" {
		event = event.Str("sql", st.sql)
	}
	event.
		Str("kind", st.kind).
		Int64("rows", rows).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg(msg)
}

// statementKind 첫 키워드 (SELECT, INSERT, DELETE ...)
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// compactSQL 공백 정리 후 길이 제한
func compactSQL(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > maxLoggedSQL {
		return s[:maxLoggedSQL] + "..."
	}
	return s
}

// tracelogAdapter routes pgx tracelog output into a zerolog logger
type tracelogAdapter struct {
	logger zerolog.Logger
}

func newTracelogAdapter(logger zerolog.Logger) tracelogAdapter {
	return tracelogAdapter{logger: logger}
}

// Log implements tracelog.Logger
func (a tracelogAdapter) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	a.logger.WithLevel(zerologLevel(level)).Fields(data).Msg(msg)
}

func zerologLevel(level tracelog.LogLevel) zerolog.Level {
	switch level {
	case tracelog.LogLevelTrace:
		return zerolog.TraceLevel
	case tracelog.LogLevelDebug:
		return zerolog.DebugLevel
	case tracelog.LogLevelWarn:
		return zerolog.WarnLevel
	case tracelog.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
