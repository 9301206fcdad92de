package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/marketpulse/internal/api/response"
)

// StoreChecker is implemented by the configured store
type StoreChecker interface {
	Ping(ctx context.Context) error
}

// PoolReporter is implemented by stores backed by a connection pool
type PoolReporter interface {
	PoolStats() (active, idle, max int32)
}

// PoolInfo 커넥션 풀 현황
type PoolInfo struct {
	ActiveConns int32 `json:"active_conns"`
	IdleConns   int32 `json:"idle_conns"`
	MaxConns    int32 `json:"max_conns"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store     StoreChecker
	storeName string
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store StoreChecker, storeName, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		storeName: storeName,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Checks        map[string]string `json:"checks"`
	Pool          *PoolInfo         `json:"pool,omitempty"`
}

// Health returns liveness plus a store ping
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
		Checks:        map[string]string{h.storeName: "ok"},
	}

	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Checks[h.storeName] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if pr, ok := h.store.(PoolReporter); ok {
		active, idle, max := pr.PoolStats()
		resp.Pool = &PoolInfo{ActiveConns: active, IdleConns: idle, MaxConns: max}
		// pool nearly exhausted
		if resp.Status == "healthy" && max > 0 && active >= max-2 {
			resp.Status = "degraded"
		}
	}

	response.JSON(w, status, resp)
}
