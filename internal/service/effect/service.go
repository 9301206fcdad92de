package effect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/marketpulse/internal/domain/analysis"
	"github.com/wonny/marketpulse/internal/domain/effect"
	analysissvc "github.com/wonny/marketpulse/internal/service/analysis"
)

// Resolver pairs one event with its price-before / price-after
type Resolver interface {
	Resolve(ctx context.Context, ev effect.ScoredNewsEvent) (effect.Resolution, error)
}

// Resetter is implemented by feeds that memoize responses within a run
type Resetter interface {
	Reset()
}

// RunResult is the outcome of one pipeline run
type RunResult struct {
	Summary  effect.RunSummary             `json:"summary"`
	Effects  []effect.SentimentPriceEffect `json:"effects"`
	Analysis analysis.Summary              `json:"analysis"`
}

// TickerAlerts groups high-score effects of one ticker, score desc
type TickerAlerts struct {
	Ticker  string                        `json:"ticker"`
	Effects []effect.SentimentPriceEffect `json:"effects"`
}

// Status reports the stored effect set and the last run of this process
type Status struct {
	StoredEffects int                `json:"stored_effects"`
	Running       bool               `json:"running"`
	LastRun       *effect.RunSummary `json:"last_run,omitempty"`
}

// Option configures the Service
type Option func(*Service)

// WithFeedReset resets the feed memo at the start of every run
func WithFeedReset(r Resetter) Option {
	return func(s *Service) {
		s.feedReset = r
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRunIDs overrides run ID generation
func WithRunIDs(next func() uuid.UUID) Option {
	return func(s *Service) {
		s.newRunID = next
	}
}

// Service resolves scored news events into sentiment-price effects and replaces the effect table
type Service struct {
	// Repositories
	eventRepo  effect.EventRepository
	effectRepo effect.EffectRepository

	// Dependencies
	resolver  Resolver
	analyzer  *analysissvc.Analyzer
	feedReset Resetter

	eventLimit    int
	alertMinScore float64

	// State
	sf      singleflight.Group
	mu      sync.RWMutex
	running bool
	lastRun *RunResult

	now      func() time.Time
	newRunID func() uuid.UUID
}

// NewService creates a new effect service
func NewService(
	eventRepo effect.EventRepository,
	effectRepo effect.EffectRepository,
	resolver Resolver,
	analyzer *analysissvc.Analyzer,
	eventLimit int,
	alertMinScore float64,
	opts ...Option,
) *Service {
	s := &Service{
		eventRepo:     eventRepo,
		effectRepo:    effectRepo,
		resolver:      resolver,
		analyzer:      analyzer,
		eventLimit:    eventLimit,
		alertMinScore: alertMinScore,
		now:           time.Now,
		newRunID:      uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Run
// =============================================================================

// Run resolves the most recent scored events and replaces the stored effect set.
// Concurrent callers share one run. A failed run leaves the stored effects untouched.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	v, err, shared := s.sf.Do("run", func() (interface{}, error) {
		return s.run(ctx)
	})
	if shared {
		log.Debug().Msg("Joined in-flight pipeline run")
	}
	if err != nil {
		return nil, err
	}
	return v.(*RunResult), nil
}

func (s *Service) run(ctx context.Context) (*RunResult, error) {
	s.setRunning(true)
	defer s.setRunning(false)

	summary := effect.RunSummary{
		RunID:     s.newRunID(),
		StartedAt: s.now(),
	}
	logger := log.With().Str("run_id", summary.RunID.String()).Logger()

	if s.feedReset != nil {
		s.feedReset.Reset()
	}

	events, err := s.eventRepo.ListScored(ctx, s.eventLimit)
	if err != nil {
		return nil, fmt.Errorf("list scored events: %w", err)
	}
	if len(events) == 0 {
		return nil, effect.ErrNoScoredEvents
	}

	logger.Info().Int("events", len(events)).Msg("Pipeline run started")

	// 이벤트는 한 번에 하나씩 처리 (feed rate limit, 공유 history)
	outcomes := make([]Outcome, 0, len(events))
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled after %d events: %w", len(outcomes), err)
		}

		res, err := s.resolver.Resolve(ctx, ev)
		if err != nil {
			event := logger.Warn()
			if isUnresolved(err) {
				event = logger.Info()
			}
			event.Err(err).
				Str("ticker", ev.Ticker).
				Int64("event_id", ev.ID).
				Msg("Event dropped")
		}
		outcomes = append(outcomes, Outcome{Event: ev, Resolution: res, Err: err})
	}

	effects, dropped := Materialize(outcomes)
	tally(&summary, effects, dropped)

	// 전체 배치가 해결된 뒤에만 교체
	if err := s.effectRepo.ReplaceAll(ctx, effects); err != nil {
		logger.Error().Err(err).Int("effects", len(effects)).Msg("Effect replacement failed, previous effects kept")
		if errors.Is(err, effect.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", effect.ErrPersistence, err)
	}

	summary.FinishedAt = s.now()

	result := &RunResult{
		Summary:  summary,
		Effects:  effects,
		Analysis: s.analyzer.Analyze(effects),
	}
	result.Analysis.RunID = &summary.RunID

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	logger.Info().
		Int("total", summary.Total).
		Int("resolved", summary.Resolved).
		Int("dropped", summary.Dropped).
		Int("corrected", summary.Corrected).
		Int("synthetic", summary.Synthetic).
		Int("live_quoted", summary.LiveQuoted).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("✅ Pipeline run completed")

	return result, nil
}

// =============================================================================
// Readers
// =============================================================================

// AlertMinScore returns the configured alert threshold (ALERT_MIN_SCORE)
func (s *Service) AlertMinScore() float64 {
	return s.alertMinScore
}

// Alerts returns stored effects with score >= minScore grouped by ticker.
// minScore is used as given; 0 returns every stored effect.
func (s *Service) Alerts(ctx context.Context, minScore float64) ([]TickerAlerts, error) {
	effects, err := s.effectRepo.ListByMinScore(ctx, minScore)
	if err != nil {
		return nil, fmt.Errorf("list effects by score: %w", err)
	}

	var groups []TickerAlerts
	for _, e := range effects {
		if len(groups) == 0 || groups[len(groups)-1].Ticker != e.Ticker {
			groups = append(groups, TickerAlerts{Ticker: e.Ticker})
		}
		last := &groups[len(groups)-1]
		last.Effects = append(last.Effects, e)
	}

	for i := range groups {
		sort.SliceStable(groups[i].Effects, func(a, b int) bool {
			return groups[i].Effects[a].Score > groups[i].Effects[b].Score
		})
	}
	return groups, nil
}

// Summary analyzes the stored effect set. Returns ErrInsufficientData when nothing is stored.
func (s *Service) Summary(ctx context.Context) (analysis.Summary, error) {
	effects, err := s.effectRepo.ListAll(ctx)
	if err != nil {
		return analysis.Summary{}, fmt.Errorf("list effects: %w", err)
	}
	if len(effects) == 0 {
		return analysis.Summary{}, effect.ErrInsufficientData
	}
	return s.analyzer.Analyze(effects), nil
}

// Status reports the stored effect count and the last run
func (s *Service) Status(ctx context.Context) (Status, error) {
	count, err := s.effectRepo.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count effects: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{StoredEffects: count, Running: s.running}
	if s.lastRun != nil {
		summary := s.lastRun.Summary
		st.LastRun = &summary
	}
	return st, nil
}

// LastRun returns the last successful run of this process, if any
func (s *Service) LastRun() *RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// IsRunning returns whether a run is in progress
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Service) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}
