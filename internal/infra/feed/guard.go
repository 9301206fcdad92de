package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

// DefaultTimeout bounds every call to the underlying feed
const DefaultTimeout = 10 * time.Second

// ==============================================================================
// Guard - 외부 시세 피드 보호 레이어
// ==============================================================================

// Guard wraps a MarketFeed for use inside resolution cascades.
// Rules:
// 1. 호출마다 timeout 적용 (timeout = 실패와 동일하게 취급)
// 2. 에러는 빈 결과로 변환 (cascade 다음 단계로 진행)
// 3. 한 run 안에서 동일한 호출은 한 번만 수행 (Reset으로 초기화)
type Guard struct {
	feed    effect.MarketFeed
	timeout time.Duration

	sf   singleflight.Group
	mu   sync.RWMutex
	memo map[string]result

	// Metrics
	calls  int64
	hits   int64
	failed int64
}

type result struct {
	bars  []effect.Bar
	price float64
}

// Stats is a snapshot of guard counters
type Stats struct {
	Calls  int64 `json:"calls"`
	Hits   int64 `json:"hits"`
	Failed int64 `json:"failed"`
}

// NewGuard creates a guard. timeout <= 0 uses DefaultTimeout.
func NewGuard(feed effect.MarketFeed, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{
		feed:    feed,
		timeout: timeout,
		memo:    make(map[string]result),
	}
}

// Reset clears memoized responses. Called at the start of every run.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memo = make(map[string]result)
	g.calls, g.hits, g.failed = 0, 0, 0
}

// Stats returns the counters since the last Reset
func (g *Guard) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{Calls: g.calls, Hits: g.hits, Failed: g.failed}
}

// History returns bars with start <= date < end. Failures yield an empty slice.
func (g *Guard) History(ctx context.Context, ticker string, start, end time.Time) ([]effect.Bar, error) {
	key := fmt.Sprintf("history|%s|%s|%s", ticker, start.Format(effect.DateLayout), end.Format(effect.DateLayout))
	r := g.do(ctx, key, ticker, func(ctx context.Context) (result, error) {
		bars, err := g.feed.History(ctx, ticker, start, end)
		return result{bars: bars}, err
	})
	return r.bars, nil
}

// Quote returns the quoted price, or ErrNoFeedData when the feed had nothing
func (g *Guard) Quote(ctx context.Context, ticker string) (float64, error) {
	r := g.do(ctx, "quote|"+ticker, ticker, func(ctx context.Context) (result, error) {
		price, err := g.feed.Quote(ctx, ticker)
		return result{price: price}, err
	})
	if r.price <= 0 {
		return 0, effect.ErrNoFeedData
	}
	return r.price, nil
}

// Recent returns the trailing bars. Failures yield an empty slice.
func (g *Guard) Recent(ctx context.Context, ticker string, sessions int) ([]effect.Bar, error) {
	key := fmt.Sprintf("recent|%s|%d", ticker, sessions)
	r := g.do(ctx, key, ticker, func(ctx context.Context) (result, error) {
		bars, err := g.feed.Recent(ctx, ticker, sessions)
		return result{bars: bars}, err
	})
	return r.bars, nil
}

func (g *Guard) do(ctx context.Context, key, ticker string, fetch func(context.Context) (result, error)) result {
	g.mu.Lock()
	g.calls++
	if r, ok := g.memo[key]; ok {
		g.hits++
		g.mu.Unlock()
		return r
	}
	g.mu.Unlock()

	v, _, _ := g.sf.Do(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		r, err := fetch(callCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%s: %w", key, effect.ErrFeedTimeout)
			}
			g.logFailure(err, key, ticker)
			r = result{}
		}

		// 상위 ctx가 취소된 경우는 memo하지 않음
		if ctx.Err() == nil {
			g.mu.Lock()
			g.memo[key] = r
			g.mu.Unlock()
		}
		return r, nil
	})
	return v.(result)
}

func (g *Guard) logFailure(err error, key, ticker string) {
	g.mu.Lock()
	g.failed++
	g.mu.Unlock()

	event := log.Debug()
	if !effect.IsSourceUnavailable(err) {
		event = log.Warn()
	}
	event.Err(err).
		Str("ticker", ticker).
		Str("call", key).
		Msg("Market feed call failed, treating as empty")
}
