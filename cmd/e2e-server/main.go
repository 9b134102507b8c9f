// Package main provides a standalone HTTP server for E2E testing.
// It runs the same routes and handlers as the real server against a mock
// chart API and auth provider, making it suitable for browser-driven tests.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"invest-desk/config"
	"invest-desk/e2e/mocks"
	"invest-desk/internal/api"
	"invest-desk/internal/app"
	"invest-desk/internal/market"
	"invest-desk/observability"
	"invest-desk/services"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLogger(false)
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	mockServer := mocks.NewMockServer()
	defer mockServer.Close()

	token := os.Getenv("E2E_AUTH_TOKEN")
	if token == "" {
		token = "e2e-test-token"
	}
	userID := os.Getenv("E2E_USER_ID")
	if userID == "" {
		userID = "00000000-0000-4000-8000-000000000001"
	}
	mockServer.SetUser(token, userID)

	cfg := config.NewTestConfig()
	cfg.Quotes.YahooBaseURL = mockServer.URL()
	cfg.Auth.SupabaseURL = mockServer.URL()
	cfg.Database.URL = os.Getenv("E2E_DATABASE_URL")
	if cfg.Database.URL == "" {
		dir, err := os.MkdirTemp("", "invest-desk-e2e-*")
		if err != nil {
			observability.Fatal("failed to create temp store dir", "error", err)
		}
		defer os.RemoveAll(dir)
		cfg.Database.SQLitePath = filepath.Join(dir, "cache.db")
	}

	ctx := context.Background()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to open cache store", "error", err)
	}

	quotes, err := app.NewQuoteProvider(cfg)
	if err != nil {
		observability.Fatal("failed to create quote provider", "error", err)
	}

	// Mock forecaster and fundamentals stand in for the external process and API
	svc := market.NewService(cfg, market.Deps{
		Store:        store,
		Quotes:       quotes,
		Forecaster:   NewMockForecaster(),
		Fundamentals: NewMockFundamentalsService(),
	})
	auth := services.NewSupabaseAuthenticator(cfg.Auth.SupabaseURL, "")
	application := app.New(cfg, store, svc, auth)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting E2E test server",
			"port", port,
			"url", fmt.Sprintf("http://localhost:%s", port),
			"mock_upstream", mockServer.URL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}
