package app

import (
	"context"
	"fmt"
	"time"

	"invest-desk/config"
	"invest-desk/internal/market"
	"invest-desk/observability"
	"invest-desk/repository"
	"invest-desk/services"
)

// OpenStore opens the configured cache store: Postgres when a database URL
// is set, SQLite when a path is set, memory otherwise
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch {
	case cfg.HasDatabase():
		var repo *repository.Repository
		err := services.WithRetry(ctx, services.StartupRetryConfig, func() error {
			r, err := repository.NewRepository(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			repo = r
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		observability.Info("using postgres cache store")
		return repo, nil

	case cfg.HasSQLite():
		store, err := repository.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		observability.Info("using sqlite cache store", "path", cfg.Database.SQLitePath)
		return store, nil

	default:
		observability.Warn("no database configured, using in-memory cache store")
		return repository.NewMemoryStore(), nil
	}
}

// NewQuoteProvider constructs the configured live quote provider
func NewQuoteProvider(cfg *config.Config) (services.QuoteProvider, error) {
	timeout := time.Duration(cfg.Quotes.TimeoutSeconds) * time.Second
	switch cfg.Quotes.Provider {
	case "yahoo":
		return services.NewYahooService(cfg.Quotes.YahooBaseURL, timeout), nil
	case "alpaca":
		if !cfg.HasAlpaca() {
			return nil, fmt.Errorf("alpaca provider requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
		return services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.Quotes.Provider)
	}
}

// Build opens the store and constructs every configured collaborator
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	quotes, err := NewQuoteProvider(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	deps := market.Deps{Store: store, Quotes: quotes}
	if cfg.HasForecast() {
		deps.Forecaster = services.NewProcessForecaster(cfg.Forecast.Command, cfg.Forecast.Args,
			time.Duration(cfg.Forecast.TimeoutSeconds)*time.Second)
	} else {
		observability.Warn("no forecast command configured, forecasts will be served from cache only")
	}
	if cfg.HasAlphaVantage() {
		deps.Fundamentals = services.NewAlphaVantageService(cfg.AlphaVantage.APIKey)
	}

	var auth services.Authenticator
	if cfg.HasAuth() {
		auth = services.NewSupabaseAuthenticator(cfg.Auth.SupabaseURL, cfg.Auth.SupabaseAnonKey)
	} else {
		observability.Warn("no auth provider configured, portfolio endpoints will reject all requests")
	}

	observability.Info("application wired",
		"quote_provider", quotes.Name(),
		"forecast", cfg.HasForecast(),
		"fundamentals", cfg.HasAlphaVantage(),
		"auth", cfg.HasAuth())

	return New(cfg, store, market.NewService(cfg, deps), auth), nil
}
