package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"invest-desk/internal/market"

	"github.com/spf13/cobra"
)

var forecastForce bool

var forecastCMD = &cobra.Command{
	Use:   "forecast <symbol>",
	Short: "Generate and cache a price forecast",
	Long: `Run the configured forecast process for a symbol and store the result.
A cached forecast is printed as is unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		if err := market.ValidateSymbol(symbol); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		_, application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown(context.Background())

		points, err := application.Market().GenerateForecast(ctx, symbol, forecastForce)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	},
}

func init() {
	forecastCMD.Flags().BoolVar(&forecastForce, "force", false, "regenerate even when a cached forecast exists")
}
