// Package cmd - marketpulse CLI commands
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/marketpulse/internal/app"
	"github.com/wonny/marketpulse/internal/pkg/config"
	"github.com/wonny/marketpulse/internal/pkg/logger"
)

const (
	serviceName    = "marketpulse-cli"
	serviceVersion = "1.0.0"
)

var (
	// 공통 플래그
	storeDriver  string
	feedProvider string
	verbose      bool

	cfg *config.Config
)

// rootCmd 루트 커맨드
var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "Sentiment-price effect resolution and correlation engine",
	Long: `MarketPulse - sentiment-price effect engine

Usage:
    go run ./cmd/marketpulse [command]

Commands:
    run         resolve scored news events and replace the effect table
    report      print high-score effects and the statistical appendix
    status      show stored effect count
    backfill    fetch recent closes into the price history store
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute 루트 커맨드 실행
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "store driver override (postgres, sqlite)")
	rootCmd.PersistentFlags().StringVar(&feedProvider, "feed", "", "feed provider override (yahoo, naver)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backfillCmd)
}

// initConfig loads .env / environment and initializes the logger
func initConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if feedProvider != "" {
		cfg.Feed.Provider = feedProvider
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	return logger.Init(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
}

// withApp wires the application for one command and closes it afterwards
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
