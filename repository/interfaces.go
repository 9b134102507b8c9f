package repository

import (
	"context"

	"invest-desk/models"
)

// PriceCacheStore persists per-symbol price series, forecasts and metadata
type PriceCacheStore interface {
	// GetCachedSeries returns nil, nil when the symbol has no row
	GetCachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, error)
	GetCachedSeriesBatch(ctx context.Context, symbols []string) ([]models.CachedSeriesRow, error)
	// UpsertHistory inserts points whose date is not cached yet and returns how many were added
	UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error)
	SaveForecast(ctx context.Context, run *models.ForecastRun) error
	MergeMetadata(ctx context.Context, symbol string, meta map[string]any) error
}

// TickerStore persists the per-user ticker watchlist
type TickerStore interface {
	ListUserTickers(ctx context.Context, userID string) ([]models.UserTicker, error)
	// AddUserTicker returns false when the pair already exists
	AddUserTicker(ctx context.Context, userID, ticker string) (bool, error)
	// RemoveUserTicker returns false when the pair did not exist
	RemoveUserTicker(ctx context.Context, userID, ticker string) (bool, error)
}

// Store is the full cache store used by the application
type Store interface {
	PriceCacheStore
	TickerStore

	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
}

// Compile-time interface verification
var (
	_ Store = (*Repository)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
