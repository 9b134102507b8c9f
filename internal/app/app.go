package app

import (
	"context"
	"errors"
	"fmt"

	"invest-desk/config"
	"invest-desk/internal/market"
	"invest-desk/models"
	"invest-desk/services"
)

// ErrRefreshInProgress is returned when a cache refresh is already running
var ErrRefreshInProgress = errors.New("cache refresh already in progress")

// StoreInterface defines the store lifecycle operations needed by App
type StoreInterface interface {
	Close()
	Health(ctx context.Context) error
}

// MarketInterface defines the stock and portfolio operations
type MarketInterface interface {
	Universe() []string
	ListStocks(ctx context.Context, offset, limit int) models.StockPage
	GetStock(ctx context.Context, symbol string, days int) (*models.StockDetail, error)
	GenerateForecast(ctx context.Context, symbol string, force bool) ([]models.PricePoint, error)
	RefreshHistory(ctx context.Context, symbols []string, days int) market.RefreshReport
	Portfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	AddTicker(ctx context.Context, userID, ticker string) (bool, error)
	RemoveTicker(ctx context.Context, userID, ticker string) (bool, error)
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg        *config.Config
	store      StoreInterface
	market     MarketInterface
	auth       services.Authenticator
	refreshSem chan struct{}
}

// New creates a new App. store and auth may be nil.
func New(cfg *config.Config, store StoreInterface, m MarketInterface, auth services.Authenticator) *App {
	return &App{
		cfg:        cfg,
		store:      store,
		market:     m,
		auth:       auth,
		refreshSem: make(chan struct{}, 1),
	}
}

// Shutdown releases the store
func (a *App) Shutdown(ctx context.Context) {
	if a.store != nil {
		a.store.Close()
	}
}

// Store returns the store for health checks
func (a *App) Store() StoreInterface {
	return a.store
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Market returns the stock and portfolio service
func (a *App) Market() MarketInterface {
	return a.market
}

// Authenticate resolves a bearer token to a user id.
// Without an auth provider every token is rejected.
func (a *App) Authenticate(ctx context.Context, token string) (string, error) {
	if a.auth == nil {
		return "", fmt.Errorf("%w: no auth provider configured", services.ErrUnauthorized)
	}
	return a.auth.Authenticate(ctx, token)
}

// RefreshCache pulls recent history for the whole universe into the cache.
// Only one refresh runs at a time.
func (a *App) RefreshCache(ctx context.Context) (market.RefreshReport, error) {
	if a.market == nil {
		return market.RefreshReport{}, fmt.Errorf("market service not initialized")
	}

	select {
	case a.refreshSem <- struct{}{}:
		defer func() { <-a.refreshSem }()
	default:
		return market.RefreshReport{}, ErrRefreshInProgress
	}

	return a.market.RefreshHistory(ctx, a.market.Universe(), a.cfg.Scheduler.RefreshDays), nil
}

var _ MarketInterface = (*market.Service)(nil)
