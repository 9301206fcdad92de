package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/marketpulse/internal/domain/effect"
)

// 2024-01-10 and 2024-01-11 09:30 America/New_York, with a null row between them
const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "regularMarketPrice": 189.5, "exchangeTimezoneName": "America/New_York"},
      "timestamp": [1704897000, 1704940200, 1704983400],
      "indicators": {"quote": [{
        "open":  [184.35, null, 186.09],
        "high":  [186.40, null, 187.05],
        "low":   [183.92, null, 183.62],
        "close": [186.19, null, 185.59],
        "volume": [46792900, null, 49128400]
      }]}
    }],
    "error": null
  }
}`

const notFoundJSON = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(100))
}

func TestClient_History(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(chartJSON))
	})

	start, end := effect.MustDate("2024-01-10"), effect.MustDate("2024-01-13")
	bars, err := c.History(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, []string{"1d"}, gotQuery["interval"])
	assert.Equal(t, []string{"1704844800"}, gotQuery["period1"])

	require.Len(t, bars, 2)
	assert.Equal(t, effect.MustDate("2024-01-10"), bars[0].Date)
	assert.Equal(t, 184.35, bars[0].Open)
	assert.Equal(t, 186.19, bars[0].Close)
	assert.Equal(t, effect.MustDate("2024-01-11"), bars[1].Date)
	assert.Equal(t, "AAPL", bars[1].Ticker)
}

func TestClient_HistoryFiltersWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartJSON))
	})

	bars, err := c.History(context.Background(), "AAPL", effect.MustDate("2024-01-11"), effect.MustDate("2024-01-12"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 185.59, bars[0].Close)
}

func TestClient_Quote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(chartJSON))
	})

	price, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 189.5, price)
}

func TestClient_Recent(t *testing.T) {
	// one Friday session (2024-01-12 09:30 New York); the API answers range queries by session
	const fridayJSON = `{"chart":{"result":[{
	  "meta":{"symbol":"AAPL","regularMarketPrice":185.9,"exchangeTimezoneName":"America/New_York"},
	  "timestamp":[1705069800],
	  "indicators":{"quote":[{"open":[186.06],"high":[186.74],"low":[185.19],"close":[185.92]}]}
	}],"error":null}}`

	t.Run("weekend call returns the last session", func(t *testing.T) {
		var query map[string][]string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			_, _ = w.Write([]byte(fridayJSON))
		})

		bars, err := c.Recent(context.Background(), "AAPL", 1)
		require.NoError(t, err)

		assert.Equal(t, []string{"1d"}, query["range"])
		assert.Empty(t, query["period1"])
		require.Len(t, bars, 1)
		assert.Equal(t, effect.MustDate("2024-01-12"), bars[0].Date)
		assert.Equal(t, 185.92, bars[0].Close)
	})

	t.Run("keeps the newest sessions", func(t *testing.T) {
		var rng string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			rng = r.URL.Query().Get("range")
			_, _ = w.Write([]byte(chartJSON))
		})

		bars, err := c.Recent(context.Background(), "AAPL", 1)
		require.NoError(t, err)
		assert.Equal(t, "1d", rng)
		require.Len(t, bars, 1)
		assert.Equal(t, effect.MustDate("2024-01-11"), bars[0].Date)

		bars, err = c.Recent(context.Background(), "AAPL", 30)
		require.NoError(t, err)
		assert.Equal(t, "30d", rng)
		assert.Len(t, bars, 2)
	})
}

func TestClient_Errors(t *testing.T) {
	t.Run("chart error is no data", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFoundJSON))
		})

		_, err := c.History(context.Background(), "NOPE", effect.MustDate("2024-01-10"), effect.MustDate("2024-01-13"))
		require.Error(t, err)
		assert.ErrorIs(t, err, effect.ErrNoFeedData)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Not Found", apiErr.Code)
	})

	t.Run("non-json failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("Too Many Requests"))
		})

		_, err := c.Quote(context.Background(), "AAPL")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	})

	t.Run("missing market price", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL"}}],"error":null}}`))
		})

		_, err := c.Quote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, effect.ErrInvalidQuote)
	})
}
