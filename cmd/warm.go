package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"invest-desk/internal/market"

	"github.com/spf13/cobra"
)

var warmDays int

var warmCMD = &cobra.Command{
	Use:   "warm [symbols...]",
	Short: "Refresh cached price history",
	Long: `Fetch recent price history from the live provider and write it to the
cache. Without arguments the whole configured universe is refreshed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Shutdown(context.Background())

		var report market.RefreshReport
		if len(args) == 0 && warmDays == 0 {
			report, err = application.RefreshCache(ctx)
			if err != nil {
				return err
			}
		} else {
			symbols := application.Market().Universe()
			if len(args) > 0 {
				symbols = make([]string, 0, len(args))
				for _, arg := range args {
					symbol := strings.ToUpper(strings.TrimSpace(arg))
					if err := market.ValidateSymbol(symbol); err != nil {
						return fmt.Errorf("%s: %w", arg, err)
					}
					symbols = append(symbols, symbol)
				}
			}
			days := warmDays
			if days <= 0 {
				days = cfg.Scheduler.RefreshDays
			}
			report = application.Market().RefreshHistory(ctx, symbols, days)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d of %d symbols\n", report.Refreshed, report.Symbols)
		if len(report.Failed) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "failed: %s\n", strings.Join(report.Failed, ", "))
		}
		return nil
	},
}

func init() {
	warmCMD.Flags().IntVar(&warmDays, "days", 0, "days of history to fetch, defaults to SCHEDULER_REFRESH_DAYS")
}
