package naver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/marketpulse/internal/domain/effect"
)

func siseRow(date, closePrice, open, high, low string) string {
	return fmt.Sprintf(`<tr>
<td align="center"><span class="tah p10 gray03">%s</span></td>
<td class="num"><span class="tah p11">%s</span></td>
<td class="num"><span class="tah p11 red02">100</span></td>
<td class="num"><span class="tah p11">%s</span></td>
<td class="num"><span class="tah p11">%s</span></td>
<td class="num"><span class="tah p11">%s</span></td>
<td class="num"><span class="tah p11">12,345,678</span></td>
</tr>`, date, closePrice, open, high, low)
}

func sisePage(rows ...string) string {
	html := `<html><body><table class="type2"><tr><th>날짜</th><th>종가</th></tr>`
	for _, r := range rows {
		html += r
	}
	return html + `</table></body></html>`
}

func newSiseServer(t *testing.T, pages map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/item/sise_day.naver":
			page := r.URL.Query().Get("page")
			requested = append(requested, page)
			_, _ = w.Write([]byte(pages[page]))
		case "/item/main.naver":
			_, _ = w.Write([]byte(`<html><p class="no_today"><em><span class="blind">71,900</span></em></p></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func TestClient_History(t *testing.T) {
	srv, requested := newSiseServer(t, map[string]string{
		"1": sisePage(
			siseRow("2024.01.12", "73,000", "72,500", "73,200", "72,100"),
			siseRow("2024.01.11", "72,600", "72,000", "72,900", "71,800"),
		),
		"2": sisePage(
			siseRow("2024.01.10", "71,700", "71,000", "72,000", "70,900"),
			siseRow("2024.01.09", "71,000", "70,500", "71,200", "70,300"),
		),
		"3": sisePage(
			siseRow("2024.01.08", "70,000", "70,000", "70,000", "70,000"),
		),
	})
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(100))

	bars, err := c.History(context.Background(), "005930", effect.MustDate("2024-01-10"), effect.MustDate("2024-01-12"))
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, effect.MustDate("2024-01-10"), bars[0].Date)
	assert.Equal(t, 71700.0, bars[0].Close)
	assert.Equal(t, 71000.0, bars[0].Open)
	assert.Equal(t, 72000.0, bars[0].High)
	assert.Equal(t, 70900.0, bars[0].Low)
	assert.Equal(t, effect.MustDate("2024-01-11"), bars[1].Date)

	// page 2 reaches back before the window start
	assert.Equal(t, []string{"1", "2"}, *requested)
}

func TestClient_Recent(t *testing.T) {
	srv, requested := newSiseServer(t, map[string]string{
		"1": sisePage(
			siseRow("2024.01.12", "73,000", "72,500", "73,200", "72,100"),
			siseRow("2024.01.11", "72,600", "72,000", "72,900", "71,800"),
		),
		"2": sisePage(
			siseRow("2024.01.10", "71,700", "71,000", "72,000", "70,900"),
			siseRow("2024.01.09", "71,000", "70,500", "71,200", "70,300"),
		),
	})
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(100))

	t.Run("last session regardless of the calendar", func(t *testing.T) {
		bars, err := c.Recent(context.Background(), "005930", 1)
		require.NoError(t, err)

		require.Len(t, bars, 1)
		assert.Equal(t, effect.MustDate("2024-01-12"), bars[0].Date)
		assert.Equal(t, 73000.0, bars[0].Close)
		assert.Equal(t, []string{"1"}, *requested)
	})

	t.Run("counts rows across pages", func(t *testing.T) {
		*requested = nil
		bars, err := c.Recent(context.Background(), "005930", 3)
		require.NoError(t, err)

		require.Len(t, bars, 3)
		assert.Equal(t, effect.MustDate("2024-01-10"), bars[0].Date)
		assert.Equal(t, effect.MustDate("2024-01-12"), bars[2].Date)
		assert.Equal(t, []string{"1", "2"}, *requested)
	})
}

func TestClient_Quote(t *testing.T) {
	t.Run("realtime", func(t *testing.T) {
		rt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/005930", r.URL.Path)
			_, _ = w.Write([]byte(`{"datas":[{"closePrice":"72,300","marketStatus":"OPEN","overMarketPriceInfo":null}]}`))
		}))
		defer rt.Close()

		c := NewClient(WithRealtimeURL(rt.URL), WithRateLimit(100))
		price, err := c.Quote(context.Background(), "005930")
		require.NoError(t, err)
		assert.Equal(t, 72300.0, price)
	})

	t.Run("over market price preferred", func(t *testing.T) {
		rt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"datas":[{"closePrice":"72,300","overMarketPriceInfo":{"overPrice":"72,450"}}]}`))
		}))
		defer rt.Close()

		c := NewClient(WithRealtimeURL(rt.URL), WithRateLimit(100))
		price, err := c.Quote(context.Background(), "005930")
		require.NoError(t, err)
		assert.Equal(t, 72450.0, price)
	})

	t.Run("falls back to main page", func(t *testing.T) {
		rt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"datas":[]}`))
		}))
		defer rt.Close()
		srv, _ := newSiseServer(t, nil)

		c := NewClient(WithBaseURL(srv.URL), WithRealtimeURL(rt.URL), WithRateLimit(100))
		price, err := c.Quote(context.Background(), "005930")
		require.NoError(t, err)
		assert.Equal(t, 71900.0, price)
	})
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 71700.0, parseNumber(" 71,700 "))
	assert.Equal(t, 189.25, parseNumber("189.25"))
	assert.Equal(t, 0.0, parseNumber("-"))
}
