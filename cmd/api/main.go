package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/api"
	"github.com/wonny/marketpulse/internal/app"
	"github.com/wonny/marketpulse/internal/domain/effect"
	"github.com/wonny/marketpulse/internal/pkg/config"
	"github.com/wonny/marketpulse/internal/pkg/logger"
)

const (
	serviceName    = "marketpulse-api"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("version", serviceVersion).
		Msg("🚀 Starting MarketPulse API Server...")

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	handler := api.NewRouter(cfg, api.Deps{
		Effects:   a.Effects,
		Store:     a.Stores.Pinger,
		StoreName: a.Stores.Driver,
		Version:   serviceVersion,
	})

	// Scheduled pipeline runs
	scheduler, err := startScheduler(ctx, cfg.Pipeline.Schedule, a)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Pipeline.Schedule).Msg("Invalid RUN_SCHEDULE")
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", addr).
			Str("store", a.Stores.Driver).
			Msg("🎯 API Server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("🛑 Shutdown signal received, stopping server...")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("👋 MarketPulse API Server stopped")
}

// startScheduler registers the pipeline run on spec. Empty spec disables scheduling.
func startScheduler(ctx context.Context, spec string, a *app.App) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		result, err := a.Effects.Run(ctx)
		if err != nil {
			if errors.Is(err, effect.ErrNoScoredEvents) {
				log.Info().Msg("Scheduled run skipped: no scored events")
				return
			}
			log.Error().Err(err).Msg("Scheduled pipeline run failed")
			return
		}
		log.Info().
			Str("run_id", result.Summary.RunID.String()).
			Int("resolved", result.Summary.Resolved).
			Msg("Scheduled pipeline run completed")
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Info().Str("schedule", spec).Msg("⏰ Pipeline scheduler started")
	return c, nil
}
