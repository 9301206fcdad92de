package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

const (
	DefaultBaseURL     = "https://finance.naver.com"
	DefaultRealtimeURL = "https://polling.finance.naver.com/api/realtime/domestic/stock"

	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5
	// sise_day 페이지당 10 거래일
	defaultMaxPages = 12
)

var numberPattern = regexp.MustCompile(`[\d.]+`)

// Client 네이버 금융 시세 클라이언트 (effect.MarketFeed 구현)
type Client struct {
	baseURL     string
	realtimeURL string
	httpClient  *http.Client
	userAgent   string
	limiter     *rate.Limiter
	maxPages    int
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets the finance.naver.com base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithRealtimeURL sets the realtime polling API URL
func WithRealtimeURL(realtimeURL string) ClientOption {
	return func(c *Client) {
		c.realtimeURL = realtimeURL
	}
}

// WithTimeout 타임아웃 지정
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithRateLimit sets requests per second
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient 클라이언트 생성
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		realtimeURL: DefaultRealtimeURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
		maxPages:  defaultMaxPages,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// =============================================================================
// Daily Prices
// =============================================================================

// History 일봉 조회 (start <= date < end, 과거순)
func (c *Client) History(ctx context.Context, stockCode string, start, end time.Time) ([]effect.Bar, error) {
	bars, err := c.collect(ctx, stockCode, func(oldest time.Time, _ int) bool {
		return oldest.Before(start)
	})
	if err != nil {
		return nil, err
	}

	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(start) && b.Date.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Recent 최근 sessions 거래일 일봉 조회 (과거순). 달력일이 아니라 행 단위로 센다.
func (c *Client) Recent(ctx context.Context, stockCode string, sessions int) ([]effect.Bar, error) {
	if sessions <= 0 {
		sessions = 1
	}

	bars, err := c.collect(ctx, stockCode, func(_ time.Time, count int) bool {
		return count >= sessions
	})
	if err != nil {
		return nil, err
	}
	return effect.LastSessions(bars, sessions), nil
}

// collect walks sise_day pages (최신순) until done reports enough rows.
// done gets the oldest date seen and the row count so far.
func (c *Client) collect(ctx context.Context, stockCode string, done func(oldest time.Time, count int) bool) ([]effect.Bar, error) {
	var all []effect.Bar

	for page := 1; page <= c.maxPages; page++ {
		bars, err := c.dailyPage(ctx, stockCode, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Warn().Err(err).Str("stock_code", stockCode).Int("page", page).Msg("Stopping daily price paging")
			break
		}
		if len(bars) == 0 {
			break
		}
		all = append(all, bars...)

		if done(bars[len(bars)-1].Date, len(all)) {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date)
	})

	// 페이지 경계 중복 제거
	out := all[:0]
	for i, b := range all {
		if i > 0 && b.Date.Equal(all[i-1].Date) {
			continue
		}
		out = append(out, b)
	}

	log.Debug().
		Str("stock_code", stockCode).
		Int("count", len(out)).
		Msg("Fetched daily prices from Naver")

	return out, nil
}

// dailyPage sise_day.naver 한 페이지 파싱 (최신순)
func (c *Client) dailyPage(ctx context.Context, stockCode string, page int) ([]effect.Bar, error) {
	url := fmt.Sprintf("%s/item/sise_day.naver?code=%s&page=%d", c.baseURL, stockCode, page)

	doc, err := c.document(ctx, url)
	if err != nil {
		return nil, err
	}

	var bars []effect.Bar

	doc.Find("table.type2 tr").Each(func(i int, s *goquery.Selection) {
		// 헤더 행 건너뛰기
		if s.Find("th").Length() > 0 {
			return
		}

		tds := s.Find("td")
		if tds.Length() < 7 {
			return
		}

		dateStr := strings.TrimSpace(tds.Eq(0).Text())
		if dateStr == "" {
			return
		}
		tradeDate, err := time.Parse("2006.01.02", dateStr)
		if err != nil {
			return
		}

		closePrice := parseNumber(tds.Eq(1).Text())
		if closePrice == 0 {
			return
		}

		bars = append(bars, effect.Bar{
			Ticker: stockCode,
			Date:   tradeDate,
			Close:  closePrice,
			Open:   parseNumber(tds.Eq(3).Text()),
			High:   parseNumber(tds.Eq(4).Text()),
			Low:    parseNumber(tds.Eq(5).Text()),
		})
	})

	return bars, nil
}

// =============================================================================
// Quote
// =============================================================================

// realtimeResponse polling API 응답
type realtimeResponse struct {
	Datas []struct {
		ClosePrice          string `json:"closePrice"`
		MarketStatus        string `json:"marketStatus"`
		OverMarketPriceInfo *struct {
			OverPrice string `json:"overPrice"`
		} `json:"overMarketPriceInfo"`
	} `json:"datas"`
}

// Quote 현재가 조회. realtime API 실패 시 종목 메인 페이지로 대체
func (c *Client) Quote(ctx context.Context, stockCode string) (float64, error) {
	price, err := c.realtimeQuote(ctx, stockCode)
	if err == nil {
		return price, nil
	}

	log.Debug().Err(err).Str("stock_code", stockCode).Msg("Realtime quote failed, falling back to main page")

	return c.mainPageQuote(ctx, stockCode)
}

func (c *Client) realtimeQuote(ctx context.Context, stockCode string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.realtimeURL, stockCode), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("Naver API error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var rt realtimeResponse
	if err := json.Unmarshal(body, &rt); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(rt.Datas) == 0 {
		return 0, fmt.Errorf("quote %s: %w", stockCode, effect.ErrNoFeedData)
	}

	// 시간외 가격 우선
	data := rt.Datas[0]
	priceStr := data.ClosePrice
	if data.OverMarketPriceInfo != nil && data.OverMarketPriceInfo.OverPrice != "" && data.OverMarketPriceInfo.OverPrice != "-" {
		priceStr = data.OverMarketPriceInfo.OverPrice
	}

	price := parseNumber(priceStr)
	if price <= 0 {
		return 0, fmt.Errorf("quote %s %q: %w", stockCode, priceStr, effect.ErrInvalidQuote)
	}
	return price, nil
}

func (c *Client) mainPageQuote(ctx context.Context, stockCode string) (float64, error) {
	doc, err := c.document(ctx, fmt.Sprintf("%s/item/main.naver?code=%s", c.baseURL, stockCode))
	if err != nil {
		return 0, err
	}

	price := parseNumber(doc.Find("p.no_today span.blind").First().Text())
	if price <= 0 {
		return 0, fmt.Errorf("quote %s: %w", stockCode, effect.ErrInvalidQuote)
	}
	return price, nil
}

// =============================================================================
// helpers
// =============================================================================

func (c *Client) document(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// parseNumber 숫자 문자열 파싱 (콤마 제거)
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	match := numberPattern.FindString(s)
	if match == "" {
		return 0
	}

	f, _ := strconv.ParseFloat(match, 64)
	return f
}
