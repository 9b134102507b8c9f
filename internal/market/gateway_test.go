package market

import (
	"context"
	"testing"

	"invest-desk/models"
	"invest-desk/repository"
)

func TestGateway_StoreErrorsDegrade(t *testing.T) {
	g := NewGateway(failingStore{})
	ctx := context.Background()

	if row, ok := g.CachedSeries(ctx, "AAPL"); ok || row != nil {
		t.Errorf("expected miss on store error, got %v %v", row, ok)
	}
	if rows := g.CachedSeriesBatch(ctx, []string{"AAPL", "MSFT"}); len(rows) != 0 {
		t.Errorf("expected empty batch on store error, got %v", rows)
	}
	if g.HasUsableHistory(ctx, "AAPL") {
		t.Error("expected no usable history on store error")
	}
	if g.UpsertHistory(ctx, "AAPL", []models.PricePoint{{Date: "2024-01-01", Price: 1}}) {
		t.Error("expected failed upsert to report false")
	}
	if g.SaveForecast(ctx, models.NewForecastRun("AAPL", nil)) {
		t.Error("expected failed forecast save to report false")
	}
	if g.SaveMetadata(ctx, "AAPL", map[string]any{"sector": "Tech"}) {
		t.Error("expected failed metadata save to report false")
	}
}

func TestGateway_NilStore(t *testing.T) {
	g := NewGateway(nil)
	ctx := context.Background()

	if _, ok := g.CachedSeries(ctx, "AAPL"); ok {
		t.Error("expected miss without a store")
	}
	if g.UpsertHistory(ctx, "AAPL", []models.PricePoint{{Date: "2024-01-01", Price: 1}}) {
		t.Error("expected no-op without a store")
	}
}

func TestGateway_HasUsableHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	g := NewGateway(store)
	ctx := context.Background()

	store.PutRow(models.CachedSeriesRow{Symbol: "JUNK", PriceSeries: []byte(`[{"date":"nope","price":"x"}]`)})
	store.PutRow(models.CachedSeriesRow{Symbol: "AAPL", PriceSeries: []byte(`{"data":[{"Date":"2024-01-01","Close":"100"}]}`)})

	tests := []struct {
		symbol string
		want   bool
	}{
		{"aapl", true},
		{"JUNK", false},
		{"NONE", false},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			if got := g.HasUsableHistory(ctx, tt.symbol); got != tt.want {
				t.Errorf("HasUsableHistory(%s) = %v, want %v", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestGateway_UpsertHistoryKeepsExistingDates(t *testing.T) {
	store := repository.NewMemoryStore()
	g := NewGateway(store)
	ctx := context.Background()

	first := []models.PricePoint{{Date: "2024-01-01", Price: 100}}
	if !g.UpsertHistory(ctx, "aapl", first) {
		t.Fatal("expected upsert to succeed")
	}
	second := []models.PricePoint{{Date: "2024-01-01", Price: 999}, {Date: "2024-01-02", Price: 101}}
	if !g.UpsertHistory(ctx, "AAPL", second) {
		t.Fatal("expected upsert to succeed")
	}

	row, ok := g.CachedSeries(ctx, "AAPL")
	if !ok {
		t.Fatal("expected cached row")
	}
	points := CachedPoints(row)
	want := []models.PricePoint{{Date: "2024-01-01", Price: 100}, {Date: "2024-01-02", Price: 101}}
	if len(points) != len(want) {
		t.Fatalf("got %v, want %v", points, want)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, points[i], want[i])
		}
	}
}

func TestCachedForecast(t *testing.T) {
	tests := []struct {
		name string
		row  *models.CachedSeriesRow
		want int
	}{
		{"nil row", nil, 0},
		{"no forecast", &models.CachedSeriesRow{}, 0},
		{"empty array", &models.CachedSeriesRow{ForecastResults: []byte(`[]`)}, 0},
		{"wrapped", &models.CachedSeriesRow{ForecastResults: []byte(`{"forecast":[{"date":"2024-02-01","yhat":10}]}`)}, 1},
		{"duplicate dates collapse", &models.CachedSeriesRow{ForecastResults: []byte(`[{"date":"2024-02-01","price":1},{"date":"2024-02-01","price":2}]`)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CachedForecast(tt.row); len(got) != tt.want {
				t.Errorf("got %d points, want %d", len(got), tt.want)
			}
		})
	}
}
