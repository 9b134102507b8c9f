package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"invest-desk/models"
	"invest-desk/observability"

	"github.com/jackc/pgx/v5"
)

// GetCachedSeries returns the cache row for a symbol
func (r *Repository) GetCachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_cache")

	row, err := scanCachedRow(r.db.QueryRow(ctx, `
		SELECT symbol, price_series, forecast_results, metadata, updated_at
		FROM stock_cache WHERE symbol = $1
	`, models.NormalizeSymbol(symbol)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to query stock cache: %w", err)
	}
	return row, nil
}

// GetCachedSeriesBatch returns the cache rows for every known symbol in the set
func (r *Repository) GetCachedSeriesBatch(ctx context.Context, symbols []string) ([]models.CachedSeriesRow, error) {
	if len(symbols) == 0 {
		return []models.CachedSeriesRow{}, nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_cache")

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = models.NormalizeSymbol(s)
	}

	rows, err := r.db.Query(ctx, `
		SELECT symbol, price_series, forecast_results, metadata, updated_at
		FROM stock_cache WHERE symbol = ANY($1)
		ORDER BY symbol
	`, upper)
	if err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to query stock cache batch: %w", err)
	}
	defer rows.Close()

	result := []models.CachedSeriesRow{}
	for rows.Next() {
		row, err := scanCachedRow(rows)
		if err != nil {
			metrics.RecordDBError("select", "stock_cache")
			return nil, fmt.Errorf("failed to scan stock cache row: %w", err)
		}
		result = append(result, *row)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to iterate stock cache rows: %w", err)
	}

	return result, nil
}

// UpsertHistory records new dated prices for a symbol. Dates already stored are left alone.
// History rows and the cached series are updated in one transaction.
func (r *Repository) UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	symbol = models.NormalizeSymbol(symbol)
	if len(points) == 0 {
		return 0, nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_price_history")

	tx, txRepo, err := r.BeginTx(ctx)
	if err != nil {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, err
	}
	defer tx.Rollback(ctx)

	added, err := txRepo.upsertHistory(ctx, symbol, points)
	if err != nil {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, fmt.Errorf("failed to commit history upsert: %w", err)
	}
	return added, nil
}

func (r *Repository) upsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	// Make sure the row exists so it can be locked
	if _, err := r.db.Exec(ctx, `
		INSERT INTO stock_cache (symbol, price_series) VALUES ($1, '[]'::jsonb)
		ON CONFLICT (symbol) DO NOTHING
	`, symbol); err != nil {
		return 0, fmt.Errorf("failed to create stock cache row: %w", err)
	}

	var existing []byte
	if err := r.db.QueryRow(ctx, `
		SELECT price_series FROM stock_cache WHERE symbol = $1 FOR UPDATE
	`, symbol).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to lock stock cache row: %w", err)
	}

	merged, added := mergeSeries(json.RawMessage(existing), points)
	if len(added) == 0 {
		return 0, nil
	}

	dates := make([]string, len(added))
	prices := make([]float64, len(added))
	for i, p := range added {
		dates[i] = p.Date
		prices[i] = p.Price
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO stock_price_history (symbol, date, price)
		SELECT $1, d::date, p FROM unnest($2::text[], $3::float8[]) AS t(d, p)
		ON CONFLICT (symbol, date) DO NOTHING
	`, symbol, dates, prices); err != nil {
		return 0, fmt.Errorf("failed to insert price history: %w", err)
	}

	encoded, err := encodeSeries(merged)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.Exec(ctx, `
		UPDATE stock_cache SET price_series = $2, updated_at = NOW() WHERE symbol = $1
	`, symbol, encoded); err != nil {
		return 0, fmt.Errorf("failed to update price series: %w", err)
	}

	return len(added), nil
}

// SaveForecast replaces the stored forecast for a symbol
func (r *Repository) SaveForecast(ctx context.Context, run *models.ForecastRun) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_cache")

	encoded, err := encodeSeries(run.Points)
	if err != nil {
		return err
	}
	meta, err := encodeMetadata(forecastMetadata(run))
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO stock_cache (symbol, price_series, forecast_results, metadata, updated_at)
		VALUES ($1, '[]'::jsonb, $2, $3, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			forecast_results = EXCLUDED.forecast_results,
			metadata = COALESCE(stock_cache.metadata, '{}'::jsonb) || EXCLUDED.metadata,
			updated_at = NOW()
	`, models.NormalizeSymbol(run.Symbol), encoded, meta)
	if err != nil {
		metrics.RecordDBError("upsert", "stock_cache")
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// MergeMetadata shallow-merges keys into a symbol's metadata
func (r *Repository) MergeMetadata(ctx context.Context, symbol string, meta map[string]any) error {
	if len(meta) == 0 {
		return nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_cache")

	encoded, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO stock_cache (symbol, price_series, metadata, updated_at)
		VALUES ($1, '[]'::jsonb, $2, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			metadata = COALESCE(stock_cache.metadata, '{}'::jsonb) || EXCLUDED.metadata,
			updated_at = NOW()
	`, models.NormalizeSymbol(symbol), encoded)
	if err != nil {
		metrics.RecordDBError("upsert", "stock_cache")
		return fmt.Errorf("failed to merge metadata: %w", err)
	}
	return nil
}

func scanCachedRow(row pgx.Row) (*models.CachedSeriesRow, error) {
	var (
		out      models.CachedSeriesRow
		prices   []byte
		forecast []byte
		meta     []byte
	)
	if err := row.Scan(&out.Symbol, &prices, &forecast, &meta, &out.UpdatedAt); err != nil {
		return nil, err
	}
	out.PriceSeries = json.RawMessage(prices)
	if len(forecast) > 0 {
		out.ForecastResults = json.RawMessage(forecast)
	}
	decoded, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	out.Metadata = decoded
	return &out, nil
}
