package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

const (
	// DefaultBaseURL is the chart API host
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second
	DefaultRateLimit = 5

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a Yahoo Finance chart API client implementing effect.MarketFeed
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient creates a new chart API client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// =============================================================================
// MarketFeed
// =============================================================================

// History returns daily bars with start <= date < end, oldest first
func (c *Client) History(ctx context.Context, ticker string, start, end time.Time) ([]effect.Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")

	result, err := c.chart(ctx, ticker, params)
	if err != nil {
		return nil, err
	}

	bars := toBars(ticker, result)
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(start) && b.Date.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Quote returns meta.regularMarketPrice
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	result, err := c.chart(ctx, ticker, params)
	if err != nil {
		return 0, err
	}

	price := result.Meta.RegularMarketPrice
	if price <= 0 {
		return 0, fmt.Errorf("quote %s: %w", ticker, effect.ErrInvalidQuote)
	}
	return price, nil
}

// Recent returns daily bars of the last sessions trading sessions, oldest first.
// range=<n>d counts sessions, so a weekend call still returns Friday.
func (c *Client) Recent(ctx context.Context, ticker string, sessions int) ([]effect.Bar, error) {
	if sessions <= 0 {
		sessions = 1
	}

	params := url.Values{}
	params.Set("range", fmt.Sprintf("%dd", sessions))
	params.Set("interval", "1d")

	result, err := c.chart(ctx, ticker, params)
	if err != nil {
		return nil, err
	}
	return effect.LastSessions(toBars(ticker, result), sessions), nil
}

// =============================================================================
// helpers
// =============================================================================

func (c *Client) chart(ctx context.Context, ticker string, params url.Values) (*chartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	log.Debug().
		Str("ticker", ticker).
		Str("query", params.Encode()).
		Msg("Yahoo chart request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Symbol: ticker}
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %w: %w", ticker, effect.ErrNoFeedData, &APIError{
			StatusCode: resp.StatusCode,
			Code:       payload.Chart.Error.Code,
			Message:    payload.Chart.Error.Description,
			Symbol:     ticker,
		})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Symbol: ticker}
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: %w", ticker, effect.ErrNoFeedData)
	}

	return &payload.Chart.Result[0], nil
}

// toBars converts timestamps to exchange-local calendar dates. Rows without a close are skipped.
func toBars(ticker string, r *chartResult) []effect.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	bars := make([]effect.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice <= 0 {
			continue
		}
		local := time.Unix(ts, 0).In(loc)
		bars = append(bars, effect.Bar{
			Ticker: ticker,
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  closePrice,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
