package api

import (
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/wonny/marketpulse/internal/api/handlers"
	"github.com/wonny/marketpulse/internal/api/middleware"
	"github.com/wonny/marketpulse/internal/pkg/config"
	"github.com/wonny/marketpulse/internal/pkg/logger"
)

// Deps holds the handler dependencies
type Deps struct {
	Effects handlers.EffectService
	Store   handlers.StoreChecker
	// StoreName labels the store in health output (postgres, sqlite)
	StoreName string
	Version   string
}

// NewRouter creates the HTTP handler with middlewares and routes
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.StoreName, deps.Version)
	effectsHandler := handlers.NewEffectsHandler(deps.Effects)

	r := mux.NewRouter()

	// Recovery must wrap everything else
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)

	loggingCfg := middleware.LoggingConfig{
		SkipPaths: []string{"/health"},
	}
	if cfg.Logging.FileEnabled {
		accessLogger := logger.NewFileLogger(
			cfg.Logging.FilePath,
			"access",
			cfg.Logging.RotationSize,
			cfg.Logging.RetentionDays,
		)
		loggingCfg.AccessLogger = &accessLogger
	}
	r.Use(middleware.Logging(loggingCfg))

	// Health check (no /api prefix)
	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/effects", effectsHandler.ListEffects).Methods(http.MethodGet)
	v1.HandleFunc("/analysis/summary", effectsHandler.GetSummary).Methods(http.MethodGet)
	v1.HandleFunc("/status", effectsHandler.GetStatus).Methods(http.MethodGet)
	v1.HandleFunc("/runs", effectsHandler.TriggerRun).Methods(http.MethodPost)
	v1.HandleFunc("/runs/last", effectsHandler.GetLastRun).Methods(http.MethodGet)

	// CORS
	allowedOrigins := gorillaHandlers.AllowedOrigins(cfg.Server.AllowOrigins)
	allowedMethods := gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	allowedHeaders := gorillaHandlers.AllowedHeaders([]string{"Accept", "Content-Type", middleware.RequestIDHeader})
	exposedHeaders := gorillaHandlers.ExposedHeaders([]string{middleware.RequestIDHeader})

	return gorillaHandlers.CORS(allowedOrigins, allowedMethods, allowedHeaders, exposedHeaders)(r)
}
