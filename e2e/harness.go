// Package e2e provides end-to-end testing infrastructure for invest-desk.
package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invest-desk/config"
	"invest-desk/e2e/mocks"
	"invest-desk/internal/api"
	"invest-desk/internal/app"
	"invest-desk/models"
	"invest-desk/repository"
	"invest-desk/services"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// NewTestHarness creates a new test harness with all dependencies initialized.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup starts the mock APIs, opens the cache store and wires the application.
// The store is Postgres when E2E_DATABASE_URL is set and SQLite otherwise.
func (h *TestHarness) Setup() error {
	h.mockServer = mocks.NewMockServer()
	h.config = h.createTestConfig()

	// Breaker state must not leak between scenarios
	services.SetGlobalRegistry(services.NewProviderRegistry())

	if h.config.HasDatabase() {
		if err := h.runMigrations(h.config.Database.URL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var err error
	h.app, err = app.Build(h.ctx, h.config)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if h.config.HasDatabase() {
		h.cleanupTestData()
	}

	handler := api.NewHandler(h.app, h.config)
	h.router = api.NewRouter(handler, h.config)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.app != nil {
		if h.config.HasDatabase() {
			h.cleanupTestData()
		}
		h.app.Shutdown(context.Background())
	}

	if h.cancel != nil {
		h.cancel()
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// Store returns the application's cache store.
func (h *TestHarness) Store() repository.Store {
	store, ok := h.app.Store().(repository.Store)
	if !ok {
		h.t.Fatalf("unexpected store type %T", h.app.Store())
	}
	return store
}

// SeedHistory writes price points straight into the cache.
func (h *TestHarness) SeedHistory(symbol string, points []models.PricePoint) {
	h.t.Helper()
	if _, err := h.Store().UpsertHistory(h.ctx, symbol, points); err != nil {
		h.t.Fatalf("seed history for %s: %v", symbol, err)
	}
}

// DoRequest performs an HTTP request and returns the response.
// A non-empty token is sent as a bearer credential.
func (h *TestHarness) DoRequest(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// ResetDatabase clears all test data from a Postgres store.
func (h *TestHarness) ResetDatabase() error {
	if !h.config.HasDatabase() {
		return nil
	}
	return h.cleanupTestData()
}

func (h *TestHarness) createTestConfig() *config.Config {
	mockURL := h.mockServer.URL()

	cfg := config.NewTestConfig()
	cfg.Quotes.Provider = "yahoo"
	cfg.Quotes.YahooBaseURL = mockURL
	cfg.Auth.SupabaseURL = mockURL
	cfg.Auth.SupabaseAnonKey = "e2e-anon-key"

	if dbURL := os.Getenv("E2E_DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	} else {
		cfg.Database.SQLitePath = filepath.Join(h.t.TempDir(), "cache.db")
	}

	return cfg
}

func (h *TestHarness) runMigrations(dbURL string) error {
	migrationsDir := findMigrationsDir()
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not found")
	}

	// Use migrate CLI if available, otherwise skip
	if _, err := exec.LookPath("migrate"); err != nil {
		h.t.Log("migrate CLI not found, skipping migrations (assuming schema exists)")
		return nil
	}

	cmd := exec.CommandContext(h.ctx, "migrate", "-path", migrationsDir, "-database", dbURL, "up")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) == 0 || strings.Contains(string(output), "no change") {
			return nil
		}
		return fmt.Errorf("migration failed: %s: %w", string(output), err)
	}

	return nil
}

func (h *TestHarness) cleanupTestData() error {
	repo, ok := h.app.Store().(*repository.Repository)
	if !ok {
		return nil
	}

	queries := []string{
		"DELETE FROM user_tickers",
		"DELETE FROM stock_price_history",
		"DELETE FROM stock_cache",
	}

	for _, q := range queries {
		if _, err := repo.Pool().Exec(h.ctx, q); err != nil {
			h.t.Logf("cleanup query failed (may be ok if table doesn't exist): %s: %v", q, err)
		}
	}

	return nil
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
		"../../migrations",
	}

	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}

	return ""
}

// SkipIfNoDatabase skips the test when E2E_DATABASE_URL is set but unreachable.
// Without the variable the harness falls back to SQLite and nothing is skipped.
func SkipIfNoDatabase(t *testing.T) {
	t.Helper()

	dbURL := os.Getenv("E2E_DATABASE_URL")
	if dbURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := repository.NewRepository(ctx, dbURL)
	if err != nil {
		t.Skipf("E2E database not available: %v", err)
	}
	repo.Close()
}
