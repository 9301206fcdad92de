package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func sample() []effect.SentimentPriceEffect {
	return []effect.SentimentPriceEffect{
		{EventID: 1, Ticker: "TSLA", EventDate: effect.MustDate("2024-01-11"), Score: 0.85,
			Label: effect.LabelPositive, PriceBefore: 240, PriceAfter: 228, PriceChangePct: -5,
			BeforeSource: effect.SourceHistory, AfterSource: effect.SourceHistoryAfter},
		{EventID: 2, Ticker: "AAPL", EventDate: effect.MustDate("2024-01-10"), Score: 0.81,
			Label: effect.LabelPositive, PriceBefore: 100, PriceAfter: 105, PriceChangePct: 5,
			BeforeSource: effect.SourceHistory, AfterSource: effect.SourceFeedQuote},
		{EventID: 3, Ticker: "AAPL", EventDate: effect.MustDate("2024-01-12"), Score: 0.97,
			Label: effect.LabelPositive, PriceBefore: 150, PriceAfter: 150.01, PriceChangePct: 0.00666,
			BeforeSource: effect.SourceFeedWindow, AfterSource: effect.SourceSynthetic, Corrected: true, Synthetic: true},
		{EventID: 4, Ticker: "AAPL", EventDate: effect.MustDate("2024-01-09"), Score: 0.40,
			Label: effect.LabelNeutral, PriceBefore: 99, PriceAfter: 100, PriceChangePct: 1.0101,
			BeforeSource: effect.SourceHistory, AfterSource: effect.SourceHistoryAfter},
	}
}

func TestEventRepository_ListScored(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create([]NewsArticle{
		{Ticker: "AAPL", Headline: "a", URL: "u1", PublishedAt: base, SentimentScore: ptr(0.9), SentimentLabel: ptr("POSITIVE")},
		{Ticker: "AAPL", Headline: "b", URL: "u2", PublishedAt: base.Add(time.Hour)},
		{Ticker: "MSFT", Headline: "c", URL: "u3", PublishedAt: base.Add(24 * time.Hour), SentimentScore: ptr(0.2), SentimentLabel: ptr("negative")},
	}).Error)

	repo := NewEventRepository(db)

	events, err := repo.ListScored(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2, "unscored rows excluded")
	assert.Equal(t, "MSFT", events[0].Ticker)
	assert.Equal(t, effect.MustDate("2024-01-11"), events[0].EventDate)
	assert.Equal(t, effect.LabelPositive, events[1].Label)

	events, err = repo.ListScored(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventRepository_ListScored_SkipsUnknownLabels(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create([]NewsArticle{
		{Ticker: "AAPL", Headline: "a", URL: "u1", PublishedAt: base, SentimentScore: ptr(0.9), SentimentLabel: ptr(" Neutral ")},
		{Ticker: "AAPL", Headline: "b", URL: "u2", PublishedAt: base.Add(time.Hour), SentimentScore: ptr(0.8)},
		{Ticker: "AAPL", Headline: "c", URL: "u3", PublishedAt: base.Add(2 * time.Hour), SentimentScore: ptr(0.7), SentimentLabel: ptr("")},
		{Ticker: "AAPL", Headline: "d", URL: "u4", PublishedAt: base.Add(3 * time.Hour), SentimentScore: ptr(0.6), SentimentLabel: ptr("bullish")},
	}).Error)

	events, err := NewEventRepository(db).ListScored(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, effect.LabelNeutral, events[0].Label)

	var kept NewsArticle
	require.NoError(t, db.First(&kept, events[0].ID).Error)
	assert.Equal(t, "u1", kept.URL)
}

func TestPriceHistoryRepository(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	repo := NewPriceHistoryRepository(db)

	n, err := repo.UpsertBatch(ctx, []effect.Bar{
		{Ticker: "AAPL", Date: effect.MustDate("2024-01-09"), Close: 100},
		{Ticker: "AAPL", Date: effect.MustDate("2024-01-12"), Close: 104},
		{Ticker: "AAPL", Date: effect.MustDate("2024-01-15"), Close: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// upsert replaces the close
	_, err = repo.UpsertBatch(ctx, []effect.Bar{{Ticker: "AAPL", Date: effect.MustDate("2024-01-12"), Close: 105}})
	require.NoError(t, err)

	t.Run("latest on or before", func(t *testing.T) {
		bar, err := repo.LatestOnOrBefore(ctx, "AAPL", effect.MustDate("2024-01-10"))
		require.NoError(t, err)
		assert.Equal(t, 100.0, bar.Close)
		assert.Equal(t, effect.MustDate("2024-01-09"), bar.Date)

		bar, err = repo.LatestOnOrBefore(ctx, "AAPL", effect.MustDate("2024-01-12"))
		require.NoError(t, err)
		assert.Equal(t, 105.0, bar.Close, "inclusive of the date")
	})

	t.Run("earliest after", func(t *testing.T) {
		bar, err := repo.EarliestAfter(ctx, "AAPL", effect.MustDate("2024-01-09"))
		require.NoError(t, err)
		assert.Equal(t, 105.0, bar.Close, "exclusive of the date")

		_, err = repo.EarliestAfter(ctx, "AAPL", effect.MustDate("2024-01-12"))
		assert.ErrorIs(t, err, effect.ErrPriceNotFound)
	})

	t.Run("unknown ticker", func(t *testing.T) {
		_, err := repo.LatestOnOrBefore(ctx, "NOPE", effect.MustDate("2024-01-12"))
		assert.ErrorIs(t, err, effect.ErrPriceNotFound)
	})
}

func TestEffectRepository(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	repo := NewEffectRepository(db)

	effects := sample()

	require.NoError(t, repo.ReplaceAll(ctx, effects))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	t.Run("list by min score", func(t *testing.T) {
		got, err := repo.ListByMinScore(ctx, 0.8)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int64{3, 2, 1}, []int64{got[0].EventID, got[1].EventID, got[2].EventID})
		assert.True(t, got[0].Synthetic)
		assert.Equal(t, effect.SourceSynthetic, got[0].AfterSource)
	})

	t.Run("list all by date", func(t *testing.T) {
		got, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, int64(4), got[0].EventID)
		assert.Equal(t, int64(1), got[3].EventID)
	})

	t.Run("same batch stores identical rows", func(t *testing.T) {
		first, err := repo.ListAll(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.ReplaceAll(ctx, effects))
		second, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("replace discards previous set", func(t *testing.T) {
		require.NoError(t, repo.ReplaceAll(ctx, effects[:1]))

		got, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].EventID)
	})

	t.Run("failed replace keeps previous set", func(t *testing.T) {
		dup := []effect.SentimentPriceEffect{effects[1], effects[1]}

		err := repo.ReplaceAll(ctx, dup)
		require.Error(t, err)
		assert.ErrorIs(t, err, effect.ErrPersistence)

		got, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].EventID)
	})

	t.Run("replace with empty set", func(t *testing.T) {
		require.NoError(t, repo.ReplaceAll(ctx, nil))
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
