package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/series"
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
	}
}

// GetFundamentals returns company overview data for a symbol.
// Alpha Vantage encodes numbers as strings and uses "None" for missing values.
func (s *AlphaVantageService) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "overview")
	timer := metrics.NewTimer()

	var fundamentals *models.Fundamentals
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		result, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*models.Fundamentals, error) {
			overview, err := s.fetchOverview(ctx, symbol)
			if err != nil {
				return nil, err
			}
			return fundamentalsFromOverview(symbol, overview)
		})
		if err != nil {
			return err
		}
		fundamentals = result
		return nil
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, "overview")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "overview", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}
	return fundamentals, nil
}

func (s *AlphaVantageService) fetchOverview(ctx context.Context, symbol string) (map[string]any, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build overview request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage: status %d", resp.StatusCode)
	}

	var overview map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
		return nil, fmt.Errorf("failed to decode overview: %w", err)
	}
	return overview, nil
}

func fundamentalsFromOverview(symbol string, overview map[string]any) (*models.Fundamentals, error) {
	if note, ok := series.Text(overview, "Note", "Information"); ok {
		return nil, fmt.Errorf("alphavantage rate limit: %s", note)
	}
	if _, ok := series.Text(overview, "Symbol"); !ok {
		return nil, ErrSymbolNotFound
	}

	f := &models.Fundamentals{Symbol: symbol}
	f.Name, _ = series.Text(overview, "Name")
	f.Sector, _ = series.Text(overview, "Sector")
	f.Industry, _ = series.Text(overview, "Industry")
	f.MarketCap = series.NumberOr(overview, 0, "MarketCapitalization")
	f.PERatio = series.NumberOr(overview, 0, "PERatio", "TrailingPE")
	f.DividendYield = series.NumberOr(overview, 0, "DividendYield")
	f.Week52High = series.NumberOr(overview, 0, "52WeekHigh")
	f.Week52Low = series.NumberOr(overview, 0, "52WeekLow")
	return f, nil
}
