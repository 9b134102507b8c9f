package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"invest-desk/config"
	"invest-desk/internal/market"
	"invest-desk/repository"
	"invest-desk/services"
)

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// blockingMarket is a MarketInterface whose refresh blocks until released
type blockingMarket struct {
	MarketInterface
	started chan struct{}
	release chan struct{}
	days    int
}

func (m *blockingMarket) Universe() []string { return []string{"AAPL"} }

func (m *blockingMarket) RefreshHistory(ctx context.Context, symbols []string, days int) market.RefreshReport {
	m.days = days
	close(m.started)
	<-m.release
	return market.RefreshReport{Symbols: len(symbols), Refreshed: len(symbols)}
}

type staticAuth struct{}

func (staticAuth) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "ok" {
		return "user-1", nil
	}
	return "", services.ErrUnauthorized
}

func TestApp_Authenticate(t *testing.T) {
	t.Run("no auth provider", func(t *testing.T) {
		a := New(testConfig(), nil, nil, nil)
		if _, err := a.Authenticate(context.Background(), "ok"); !errors.Is(err, services.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("delegates to provider", func(t *testing.T) {
		a := New(testConfig(), nil, nil, staticAuth{})
		id, err := a.Authenticate(context.Background(), "ok")
		if err != nil || id != "user-1" {
			t.Errorf("got %q, %v", id, err)
		}
		if _, err := a.Authenticate(context.Background(), "bad"); !errors.Is(err, services.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestApp_RefreshCache(t *testing.T) {
	t.Run("market not initialized", func(t *testing.T) {
		a := New(testConfig(), nil, nil, nil)
		if _, err := a.RefreshCache(context.Background()); err == nil {
			t.Error("expected error when market service is nil")
		}
	})

	t.Run("one refresh at a time", func(t *testing.T) {
		cfg := testConfig()
		cfg.Scheduler.RefreshDays = 42
		m := &blockingMarket{started: make(chan struct{}), release: make(chan struct{})}
		a := New(cfg, nil, m, nil)

		done := make(chan market.RefreshReport)
		go func() {
			report, _ := a.RefreshCache(context.Background())
			done <- report
		}()
		<-m.started

		if _, err := a.RefreshCache(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
			t.Errorf("expected ErrRefreshInProgress, got %v", err)
		}

		close(m.release)
		report := <-done
		if report.Refreshed != 1 || m.days != 42 {
			t.Errorf("unexpected report %+v days %d", report, m.days)
		}
	})
}

func TestApp_Shutdown(t *testing.T) {
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	a := New(testConfig(), store, nil, nil)
	if err := a.Store().Health(context.Background()); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}

	a.Shutdown(context.Background())
	if err := store.Health(context.Background()); err == nil {
		t.Error("expected closed store to fail health check")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory by default", func(t *testing.T) {
		store, err := OpenStore(ctx, testConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*repository.MemoryStore); !ok {
			t.Errorf("expected memory store, got %T", store)
		}
	})

	t.Run("sqlite when path set", func(t *testing.T) {
		cfg := testConfig()
		cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "cache.db")
		store, err := OpenStore(ctx, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*repository.SQLiteStore); !ok {
			t.Errorf("expected sqlite store, got %T", store)
		}
	})
}

func TestNewQuoteProvider(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantName string
		wantErr  bool
	}{
		{"yahoo", func(c *config.Config) {}, services.BreakerYahoo, false},
		{"alpaca", func(c *config.Config) {
			c.Quotes.Provider = "alpaca"
			c.Alpaca.APIKey = "key"
			c.Alpaca.APISecret = "secret"
		}, services.BreakerAlpaca, false},
		{"alpaca without keys", func(c *config.Config) { c.Quotes.Provider = "alpaca" }, "", true},
		{"unknown", func(c *config.Config) { c.Quotes.Provider = "bloomberg" }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			p, err := NewQuoteProvider(cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("provider = %s, want %s", p.Name(), tt.wantName)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	a, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Market() == nil || a.Store() == nil {
		t.Fatal("expected market service and store")
	}
	if got := a.Market().Universe(); len(got) != 3 {
		t.Errorf("unexpected universe %v", got)
	}
	if _, err := a.Authenticate(context.Background(), "token"); !errors.Is(err, services.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without auth config, got %v", err)
	}
}
