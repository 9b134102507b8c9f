package market

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"invest-desk/config"
	"invest-desk/models"
	"invest-desk/repository"
	"invest-desk/services"
)

// fakeQuotes is an in-memory QuoteProvider
type fakeQuotes struct {
	mu       sync.Mutex
	quotes   map[string]*models.QuoteSnapshot
	bars     map[string][]models.Bar
	requests []models.HistoryRequest
	quoteErr error
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		quotes: make(map[string]*models.QuoteSnapshot),
		bars:   make(map[string][]models.Bar),
	}
}

func (f *fakeQuotes) Name() string { return "fake" }

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*models.QuoteSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, services.ErrSymbolNotFound
	}
	return q, nil
}

func (f *fakeQuotes) GetHistory(ctx context.Context, symbol string, req models.HistoryRequest) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, services.ErrSymbolNotFound
	}
	return bars, nil
}

// fakeForecaster returns fixed points or a fixed error and counts calls
type fakeForecaster struct {
	points  []models.PricePoint
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (f *fakeForecaster) Generate(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

// fakeFundamentals serves one fixed set of fundamentals
type fakeFundamentals struct {
	calls atomic.Int32
}

func (f *fakeFundamentals) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	f.calls.Add(1)
	return &models.Fundamentals{
		Symbol:    symbol,
		Name:      "Fundamental Name",
		Sector:    "Technology",
		Industry:  "Consumer Electronics",
		MarketCap: 2.5e12,
		PERatio:   28.456,
	}, nil
}

// failingStore fails every operation
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) GetCachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, error) {
	return nil, errStoreDown
}
func (failingStore) GetCachedSeriesBatch(ctx context.Context, symbols []string) ([]models.CachedSeriesRow, error) {
	return nil, errStoreDown
}
func (failingStore) UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	return 0, errStoreDown
}
func (failingStore) SaveForecast(ctx context.Context, run *models.ForecastRun) error {
	return errStoreDown
}
func (failingStore) MergeMetadata(ctx context.Context, symbol string, meta map[string]any) error {
	return errStoreDown
}
func (failingStore) ListUserTickers(ctx context.Context, userID string) ([]models.UserTicker, error) {
	return nil, errStoreDown
}
func (failingStore) AddUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	return false, errStoreDown
}
func (failingStore) RemoveUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Close()                           {}
func (failingStore) Health(ctx context.Context) error { return errStoreDown }

var testNow = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	s := NewService(config.NewTestConfig(), deps)
	s.now = func() time.Time { return testNow }
	s.fallback.now = s.now
	return s
}

func rawSeries(t *testing.T, points any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(points)
	if err != nil {
		t.Fatalf("marshal series: %v", err)
	}
	return b
}

func dailyBars(symbol string, start time.Time, closes ...float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c - 1,
			High:   c + 1,
			Low:    c - 2,
			Close:  c,
			Volume: int64(1000 * (i + 1)),
		}
	}
	return bars
}

var _ repository.Store = failingStore{}
