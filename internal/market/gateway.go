package market

import (
	"context"

	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/repository"
	"invest-desk/series"
)

// Gateway fronts the cache store. Store failures are logged and counted,
// then reported as a miss or a skipped write so callers can fall back to
// live data.
type Gateway struct {
	store repository.PriceCacheStore
}

// NewGateway creates a Gateway over store. A nil store behaves as an
// always-empty cache.
func NewGateway(store repository.PriceCacheStore) *Gateway {
	return &Gateway{store: store}
}

// CachedSeries returns the cache row for symbol
func (g *Gateway) CachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, bool) {
	metrics := observability.GetMetrics()
	if g.store == nil {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}

	symbol = models.NormalizeSymbol(symbol)
	row, err := g.store.GetCachedSeries(ctx, symbol)
	if err != nil {
		g.logError("get", symbol, err)
		metrics.RecordCacheLookup("error")
		return nil, false
	}
	if row == nil {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return row, true
}

// CachedSeriesBatch returns the cached rows for symbols keyed by symbol.
// Symbols without a row are absent from the map.
func (g *Gateway) CachedSeriesBatch(ctx context.Context, symbols []string) map[string]*models.CachedSeriesRow {
	out := make(map[string]*models.CachedSeriesRow, len(symbols))
	if g.store == nil || len(symbols) == 0 {
		return out
	}

	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = models.NormalizeSymbol(s)
	}

	metrics := observability.GetMetrics()
	rows, err := g.store.GetCachedSeriesBatch(ctx, normalized)
	if err != nil {
		observability.WithError(err).Warn("batch cache lookup failed, treating as miss",
			"component", "cache", "symbols", len(normalized))
		metrics.RecordCacheError("get_batch")
		return out
	}
	for i := range rows {
		row := rows[i]
		out[row.Symbol] = &row
	}
	for _, s := range normalized {
		if _, ok := out[s]; ok {
			metrics.RecordCacheLookup("hit")
		} else {
			metrics.RecordCacheLookup("miss")
		}
	}
	return out
}

// HasUsableHistory reports whether symbol has a cached series with at least one valid point
func (g *Gateway) HasUsableHistory(ctx context.Context, symbol string) bool {
	row, ok := g.CachedSeries(ctx, symbol)
	return ok && len(CachedPoints(row)) > 0
}

// UpsertHistory stores points for dates not cached yet. It reports false when
// the write failed.
func (g *Gateway) UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) bool {
	if g.store == nil || len(points) == 0 {
		return false
	}
	symbol = models.NormalizeSymbol(symbol)
	added, err := g.store.UpsertHistory(ctx, symbol, points)
	if err != nil {
		g.logError("upsert_history", symbol, err)
		return false
	}
	if added > 0 {
		observability.GetMetrics().RecordCacheWrite("history")
		observability.WithSymbol(symbol).Debug("cached new history points", "added", added)
	}
	return true
}

// SaveForecast replaces the cached forecast for run.Symbol
func (g *Gateway) SaveForecast(ctx context.Context, run *models.ForecastRun) bool {
	if g.store == nil || run == nil {
		return false
	}
	run.Symbol = models.NormalizeSymbol(run.Symbol)
	if err := g.store.SaveForecast(ctx, run); err != nil {
		g.logError("save_forecast", run.Symbol, err)
		return false
	}
	observability.GetMetrics().RecordCacheWrite("forecast")
	return true
}

// SaveMetadata shallow-merges meta into the symbol's cached metadata
func (g *Gateway) SaveMetadata(ctx context.Context, symbol string, meta map[string]any) bool {
	if g.store == nil || len(meta) == 0 {
		return false
	}
	symbol = models.NormalizeSymbol(symbol)
	if err := g.store.MergeMetadata(ctx, symbol, meta); err != nil {
		g.logError("merge_metadata", symbol, err)
		return false
	}
	observability.GetMetrics().RecordCacheWrite("metadata")
	return true
}

func (g *Gateway) logError(operation, symbol string, err error) {
	observability.GetMetrics().RecordCacheError(operation)
	observability.WithSymbol(symbol).Warn("cache store operation failed",
		"component", "cache", "operation", operation, "error", err)
}

// CachedPoints normalizes a row's price series into a sorted series with unique dates
func CachedPoints(row *models.CachedSeriesRow) []models.PricePoint {
	if row == nil {
		return nil
	}
	return series.Unique(series.Normalize(row.PriceSeries))
}

// CachedForecast normalizes a row's stored forecast
func CachedForecast(row *models.CachedSeriesRow) []models.PricePoint {
	if !row.HasForecast() {
		return nil
	}
	return series.Unique(series.Normalize(row.ForecastResults))
}
