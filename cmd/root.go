// Package cmd holds the invest-desk command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"invest-desk/config"
	"invest-desk/internal/app"
	"invest-desk/observability"

	"github.com/spf13/cobra"
)

var rootCMD = &cobra.Command{
	Use:   "invest-desk",
	Short: "Stock price cache and aggregation backend",
	Long: `invest-desk serves cached stock price history, forecasts and
portfolio aggregates over a JSON API, filling cache misses from a live
market data provider.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.AddCommand(serveCMD, warmCMD, forecastCMD)
}

// loadConfig loads configuration and sets up logging and metrics
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.Configure(cfg.Logging.Format, cfg.Logging.Level)
	observability.InitMetrics()
	return cfg, nil
}

// buildApp loads configuration and wires the application
func buildApp(ctx context.Context) (*config.Config, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	application, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build application: %w", err)
	}
	return cfg, application, nil
}
