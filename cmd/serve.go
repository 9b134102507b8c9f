package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"invest-desk/internal/api"
	"invest-desk/internal/scheduler"
	"invest-desk/observability"

	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveScheduler bool
	serveWarm      bool
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP API server. With --scheduler (or SCHEDULER_ENABLED=true)
the cache is refreshed in the background on the configured cron schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, application, err := buildApp(ctx)
		if err != nil {
			return err
		}

		if serveAddr != "" {
			cfg.HTTP.Addr = serveAddr
		}

		var sched *scheduler.Scheduler
		if serveScheduler || cfg.Scheduler.Enabled {
			sched = scheduler.New(ctx, application, 30*time.Minute)
			if err := sched.Register(cfg.Scheduler.RefreshCron); err != nil {
				application.Shutdown(context.Background())
				return err
			}
			sched.Start()
			observability.Info("cache warmer scheduled", "cron", cfg.Scheduler.RefreshCron, "next", sched.Next())
		}
		if serveWarm {
			warmer := sched
			if warmer == nil {
				warmer = scheduler.New(ctx, application, 30*time.Minute)
			}
			go warmer.RunNow()
		}

		handler := api.NewHandler(application, cfg)
		server := &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      api.NewRouter(handler, cfg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: time.Duration(cfg.HTTP.RequestTimeoutSeconds+5) * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			observability.Info("starting server", "addr", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		var runErr error
		select {
		case runErr = <-serverErr:
			if runErr != nil {
				observability.Error("server error", "error", runErr)
			}
		case <-ctx.Done():
			observability.Info("shutting down server...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			observability.Error("server forced to shutdown", "error", err)
		}
		if sched != nil {
			sched.Stop()
		}
		application.Shutdown(shutdownCtx)
		observability.Info("server stopped")

		return runErr
	},
}

func init() {
	serveCMD.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides HTTP_ADDR")
	serveCMD.Flags().BoolVar(&serveScheduler, "scheduler", false, "enable the background cache warmer")
	serveCMD.Flags().BoolVar(&serveWarm, "warm", false, "refresh the cache once at startup")
}
