package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"invest-desk/models"
)

// MemoryStore is a process-local cache store.
// It backs tests and runs without any database configured; contents are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    map[string]*models.CachedSeriesRow
	history map[string]map[string]float64
	tickers map[string][]models.UserTicker
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:    make(map[string]*models.CachedSeriesRow),
		history: make(map[string]map[string]float64),
		tickers: make(map[string][]models.UserTicker),
	}
}

// Close is a no-op
func (m *MemoryStore) Close() {}

// Health always succeeds
func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// PutRow stores a raw cache row as-is, replacing any existing row
func (m *MemoryStore) PutRow(row models.CachedSeriesRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.Symbol = models.NormalizeSymbol(row.Symbol)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	m.rows[row.Symbol] = cloneRow(&row)
}

// GetCachedSeries returns the cache row for a symbol
func (m *MemoryStore) GetCachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[models.NormalizeSymbol(symbol)]
	if !ok {
		return nil, nil
	}
	return cloneRow(row), nil
}

// GetCachedSeriesBatch returns the cache rows for every known symbol in the set
func (m *MemoryStore) GetCachedSeriesBatch(ctx context.Context, symbols []string) ([]models.CachedSeriesRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.CachedSeriesRow{}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = models.NormalizeSymbol(s)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if row, ok := m.rows[s]; ok {
			result = append(result, *cloneRow(row))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

// UpsertHistory records new dated prices for a symbol. Dates already stored are left alone.
func (m *MemoryStore) UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	symbol = models.NormalizeSymbol(symbol)
	if len(points) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.rowLocked(symbol)
	merged, added := mergeSeries(row.PriceSeries, points)
	if len(added) == 0 {
		return 0, nil
	}

	hist := m.history[symbol]
	if hist == nil {
		hist = make(map[string]float64)
		m.history[symbol] = hist
	}
	for _, p := range added {
		if _, ok := hist[p.Date]; !ok {
			hist[p.Date] = p.Price
		}
	}

	encoded, err := encodeSeries(merged)
	if err != nil {
		return 0, err
	}
	row.PriceSeries = encoded
	row.UpdatedAt = time.Now().UTC()
	return len(added), nil
}

// SaveForecast replaces the stored forecast for a symbol
func (m *MemoryStore) SaveForecast(ctx context.Context, run *models.ForecastRun) error {
	encoded, err := encodeSeries(run.Points)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.rowLocked(models.NormalizeSymbol(run.Symbol))
	row.ForecastResults = encoded
	mergeInto(row, forecastMetadata(run))
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// MergeMetadata shallow-merges keys into a symbol's metadata
func (m *MemoryStore) MergeMetadata(ctx context.Context, symbol string, meta map[string]any) error {
	if len(meta) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.rowLocked(models.NormalizeSymbol(symbol))
	mergeInto(row, meta)
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// HistoryCount returns the number of stored history rows for a symbol
func (m *MemoryStore) HistoryCount(ctx context.Context, symbol string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history[models.NormalizeSymbol(symbol)]), nil
}

// ListUserTickers returns a user's tracked tickers in insertion order
func (m *MemoryStore) ListUserTickers(ctx context.Context, userID string) ([]models.UserTicker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.UserTicker{}, m.tickers[userID]...), nil
}

// AddUserTicker tracks a ticker for a user
func (m *MemoryStore) AddUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	ticker = models.NormalizeSymbol(ticker)
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ut := range m.tickers[userID] {
		if ut.StockTicker == ticker {
			return false, nil
		}
	}
	m.tickers[userID] = append(m.tickers[userID], models.UserTicker{
		UserID:      userID,
		StockTicker: ticker,
		CreatedAt:   time.Now().UTC(),
	})
	return true, nil
}

// RemoveUserTicker stops tracking a ticker for a user
func (m *MemoryStore) RemoveUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	ticker = models.NormalizeSymbol(ticker)
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.tickers[userID]
	for i, ut := range list {
		if ut.StockTicker == ticker {
			m.tickers[userID] = append(list[:i:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) rowLocked(symbol string) *models.CachedSeriesRow {
	row, ok := m.rows[symbol]
	if !ok {
		row = &models.CachedSeriesRow{
			Symbol:      symbol,
			PriceSeries: json.RawMessage("[]"),
			UpdatedAt:   time.Now().UTC(),
		}
		m.rows[symbol] = row
	}
	return row
}

func mergeInto(row *models.CachedSeriesRow, meta map[string]any) {
	if row.Metadata == nil {
		row.Metadata = make(map[string]any, len(meta))
	}
	for k, v := range meta {
		row.Metadata[k] = v
	}
}

func cloneRow(row *models.CachedSeriesRow) *models.CachedSeriesRow {
	out := *row
	out.PriceSeries = append(json.RawMessage(nil), row.PriceSeries...)
	if row.ForecastResults != nil {
		out.ForecastResults = append(json.RawMessage(nil), row.ForecastResults...)
	}
	if row.Metadata != nil {
		out.Metadata = make(map[string]any, len(row.Metadata))
		for k, v := range row.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
