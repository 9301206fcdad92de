package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type steppedClock struct {
	at   time.Time
	step time.Duration
}

func (c *steppedClock) now() time.Time {
	t := c.at
	c.at = c.at.Add(c.step)
	return t
}

func newTestTracer(buf *bytes.Buffer, slow, step time.Duration) *StatementTracer {
	tr := NewStatementTracer(zerolog.New(buf).Level(zerolog.DebugLevel), slow)
	clock := &steppedClock{at: time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC), step: step}
	tr.now = clock.now
	return tr
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestStatementTracer(t *testing.T) {
	ctx := context.Background()

	t.Run("fast query logs at debug", func(t *testing.T) {
		var buf bytes.Buffer
		tr := newTestTracer(&buf, 250*time.Millisecond, 10*time.Millisecond)

		qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "  select *\n  from sentiment_price_effects  "})
		tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 4")})

		entry := lastEntry(t, &buf)
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "SELECT", entry["kind"])
		assert.Equal(t, "select * from sentiment_price_effects", entry["sql"])
		assert.EqualValues(t, 4, entry["rows"])
	})

	t.Run("slow copy warns with table", func(t *testing.T) {
		var buf bytes.Buffer
		tr := newTestTracer(&buf, 250*time.Millisecond, time.Second)

		cctx := tr.TraceCopyFromStart(ctx, nil, pgx.TraceCopyFromStartData{
			TableName: pgx.Identifier{"sentiment_price_effects"},
		})
		tr.TraceCopyFromEnd(cctx, nil, pgx.TraceCopyFromEndData{CommandTag: pgconn.NewCommandTag("COPY 120")})

		entry := lastEntry(t, &buf)
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "Slow statement", entry["message"])
		assert.Equal(t, "COPY", entry["kind"])
		assert.Equal(t, `"sentiment_price_effects"`, entry["table"])
		assert.EqualValues(t, 120, entry["rows"])
		assert.EqualValues(t, 1000, entry["duration_ms"])
	})

	t.Run("error wins over slow", func(t *testing.T) {
		var buf bytes.Buffer
		tr := newTestTracer(&buf, time.Millisecond, time.Second)

		qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "DELETE FROM sentiment_price_effects"})
		tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("lock timeout")})

		entry := lastEntry(t, &buf)
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "lock timeout", entry["error"])
		assert.Equal(t, "DELETE", entry["kind"])
	})

	t.Run("zero threshold disables slow warning", func(t *testing.T) {
		var buf bytes.Buffer
		tr := newTestTracer(&buf, 0, time.Hour)

		qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})

		assert.Equal(t, "debug", lastEntry(t, &buf)["level"])
	})
}

func TestCompactSQL(t *testing.T) {
	assert.Equal(t, "SELECT a FROM b", compactSQL("\n\tSELECT  a\n\tFROM b\n"))

	long := compactSQL("SELECT " + strings.Repeat("x, ", 200))
	assert.Len(t, long, maxLoggedSQL+3)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestStatementKind(t *testing.T) {
	assert.Equal(t, "INSERT", statementKind("insert into t values (1)"))
	assert.Equal(t, "UNKNOWN", statementKind("   "))
}

func TestTracelogAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := newTracelogAdapter(zerolog.New(&buf))

	a.Log(context.Background(), tracelog.LogLevelWarn, "Query", map[string]any{"sql": "SELECT 1"})

	entry := lastEntry(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "SELECT 1", entry["sql"])
}
