//go:build e2e
// +build e2e

package scenarios

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"invest-desk/e2e"
	"invest-desk/models"
)

func setupHarness(t *testing.T) *e2e.TestHarness {
	t.Helper()
	e2e.SkipIfNoDatabase(t)

	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func TestStockDetail_LiveThenCached(t *testing.T) {
	harness := setupHarness(t)
	mock := harness.MockServer()

	resp := harness.DoRequest(http.MethodGet, "/api/stock/AAPL?days=30", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var live models.StockDetail
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if live.Source != models.SourceLive {
		t.Errorf("first request should be served live, got %q", live.Source)
	}
	if live.Company != "Apple Inc." {
		t.Errorf("expected company from quote metadata, got %q", live.Company)
	}
	if len(live.ChartData) == 0 {
		t.Fatal("expected chart data")
	}
	if live.ForecastData == nil {
		t.Error("forecastData should be an empty array, not null")
	}

	mock.ClearRequestLog()

	resp = harness.DoRequest(http.MethodGet, "/api/stock/AAPL?days=30", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var cached models.StockDetail
	if err := json.NewDecoder(resp.Body).Decode(&cached); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if cached.Source != models.SourceCache {
		t.Errorf("second request should be served from cache, got %q", cached.Source)
	}
	if cached.Company != "Apple Inc." {
		t.Errorf("cached company should come from stored metadata, got %q", cached.Company)
	}
	if n := mock.ChartRequests("AAPL"); n != 0 {
		t.Errorf("cache hit should not call the chart API, got %d requests", n)
	}
	if cached.Price != live.ChartData[len(live.ChartData)-1].Price {
		t.Errorf("cached price %v should match last live close %v",
			cached.Price, live.ChartData[len(live.ChartData)-1].Price)
	}
}

func TestStockDetail_SeededCache(t *testing.T) {
	harness := setupHarness(t)

	harness.SeedHistory("NVDA", []models.PricePoint{
		{Date: "2024-01-02", Price: 100},
		{Date: "2024-01-03", Price: 102},
	})

	resp := harness.DoRequest(http.MethodGet, "/api/stock/nvda", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var detail models.StockDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if detail.Symbol != "NVDA" || detail.Source != models.SourceCache {
		t.Errorf("unexpected symbol/source: %s/%s", detail.Symbol, detail.Source)
	}
	if detail.Price != 102 || detail.Change != 2 || detail.ChangePercent != 1.96 {
		t.Errorf("unexpected price/change: %v %v %v", detail.Price, detail.Change, detail.ChangePercent)
	}
	if detail.HistoryStart != "2024-01-02" {
		t.Errorf("expected history start 2024-01-02, got %q", detail.HistoryStart)
	}
}

func TestStockDetail_Errors(t *testing.T) {
	harness := setupHarness(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown symbol", "/api/stock/ZZZZ", http.StatusNotFound},
		{"invalid symbol", "/api/stock/AA$PL", http.StatusBadRequest},
		{"symbol too long", "/api/stock/ABCDEFGHIJK", http.StatusBadRequest},
		{"invalid days", "/api/stock/AAPL?days=abc", http.StatusBadRequest},
		{"zero days", "/api/stock/AAPL?days=0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := harness.DoRequest(http.MethodGet, tt.path, "", "")
			if resp.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestStockDetail_ProviderDown(t *testing.T) {
	harness := setupHarness(t)
	harness.MockServer().SetChartError(errors.New("upstream unavailable"))

	resp := harness.DoRequest(http.MethodGet, "/api/stock/MSFT", "", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing is cached and the provider is down, got %d", resp.Code)
	}

	var errResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestStockList_WarmedCache(t *testing.T) {
	harness := setupHarness(t)
	mock := harness.MockServer()

	report, err := harness.App().RefreshCache(harness.Context())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if report.Refreshed != len(harness.Config().Market.Universe) {
		t.Fatalf("expected every symbol refreshed, got %+v", report)
	}

	mock.ClearRequestLog()

	resp := harness.DoRequest(http.MethodGet, "/api/stocks?limit=2", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var page models.StockPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Stocks) != 2 || !page.HasMore || page.Total != 3 {
		t.Errorf("unexpected page: %+v", page)
	}
	if page.Stocks[0].Symbol != "AAPL" || page.Stocks[1].Symbol != "MSFT" {
		t.Errorf("page should keep universe order, got %s, %s", page.Stocks[0].Symbol, page.Stocks[1].Symbol)
	}
	if len(mock.GetRequestLog()) != 0 {
		t.Errorf("warmed list should be served from cache, got %d upstream requests", len(mock.GetRequestLog()))
	}
}
