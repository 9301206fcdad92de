package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/api/response"
	"github.com/wonny/marketpulse/internal/domain/analysis"
	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/pkg/logger"
	effectsvc "github.com/wonny/marketpulse/internal/service/effect"
)

// EffectService is the subset of the effect service the API serves
type EffectService interface {
	Run(ctx context.Context) (*effectsvc.RunResult, error)
	Alerts(ctx context.Context, minScore float64) ([]effectsvc.TickerAlerts, error)
	AlertMinScore() float64
	Summary(ctx context.Context) (analysis.Summary, error)
	Status(ctx context.Context) (effectsvc.Status, error)
	LastRun() *effectsvc.RunResult
	IsRunning() bool
}

// EffectsHandler serves effects, analysis and pipeline runs
type EffectsHandler struct {
	svc EffectService
}

// NewEffectsHandler creates a new EffectsHandler
func NewEffectsHandler(svc EffectService) *EffectsHandler {
	return &EffectsHandler{svc: svc}
}

// ListEffects handles GET /api/v1/effects?min_score=
// Without min_score the configured alert threshold applies.
func (h *EffectsHandler) ListEffects(w http.ResponseWriter, r *http.Request) {
	minScore := h.svc.AlertMinScore()
	if v := r.URL.Query().Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			response.BadRequest(w, r, "min_score must be a number in [0,1]")
			return
		}
		minScore = f
	}

	groups, err := h.svc.Alerts(r.Context(), minScore)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if groups == nil {
		groups = []effectsvc.TickerAlerts{}
	}

	total := 0
	for _, g := range groups {
		total += len(g.Effects)
	}
	response.SuccessList(w, r, groups, total)
}

// GetSummary handles GET /api/v1/analysis/summary
func (h *EffectsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, summary)
}

// GetStatus handles GET /api/v1/status
func (h *EffectsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, r, st)
}

// GetLastRun handles GET /api/v1/runs/last
func (h *EffectsHandler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	last := h.svc.LastRun()
	if last == nil {
		response.NotFound(w, r, "no pipeline run completed since startup")
		return
	}
	response.Success(w, r, last)
}

// TriggerRun handles POST /api/v1/runs
func (h *EffectsHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.svc.IsRunning() {
		h.fail(w, r, effect.ErrRunInProgress)
		return
	}

	log.Info().Str("request_id", logger.RequestID(r.Context())).Msg("Pipeline run requested")

	// 실행 시간이 서버 WriteTimeout보다 길 수 있으므로 이 요청만 쓰기 데드라인 해제
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Warn().Err(err).Msg("Could not lift write deadline for pipeline run")
	}

	result, err := h.svc.Run(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, r, result, "pipeline run completed")
}

// fail maps domain errors to HTTP responses
func (h *EffectsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, effect.ErrRunInProgress):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, effect.ErrNoScoredEvents), errors.Is(err, effect.ErrInsufficientData):
		response.BusinessRuleViolation(w, r, err.Error())
	case errors.Is(err, effect.ErrPersistence):
		response.DatabaseError(w, r, err)
	case errors.Is(err, context.DeadlineExceeded):
		response.Timeout(w, r, err)
	default:
		response.InternalError(w, r, err)
	}
}
