package main

import (
	"context"
	"strings"
	"time"

	"invest-desk/models"
	"invest-desk/services"
)

// MockForecaster returns a deterministic upward-sloping forecast
type MockForecaster struct {
	Days  int
	Start float64
}

func NewMockForecaster() *MockForecaster {
	return &MockForecaster{Days: 7, Start: 100}
}

func (m *MockForecaster) Generate(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := time.Now().UTC().Truncate(24 * time.Hour)
	points := make([]models.PricePoint, m.Days)
	for i := range points {
		day = day.AddDate(0, 0, 1)
		points[i] = models.PricePoint{
			Date:  day.Format(models.DateLayout),
			Price: m.Start + float64(i),
		}
	}
	return points, nil
}

// MockFundamentalsService provides fixed company data for e2e testing
type MockFundamentalsService struct{}

func NewMockFundamentalsService() *MockFundamentalsService {
	return &MockFundamentalsService{}
}

func (m *MockFundamentalsService) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	profiles := map[string]*models.Fundamentals{
		"AAPL": {
			Symbol:        "AAPL",
			Name:          "Apple Inc",
			Sector:        "Technology",
			Industry:      "Consumer Electronics",
			MarketCap:     3000000000000,
			PERatio:       28.5,
			DividendYield: 0.0052,
		},
		"MSFT": {
			Symbol:        "MSFT",
			Name:          "Microsoft Corp",
			Sector:        "Technology",
			Industry:      "Software - Infrastructure",
			MarketCap:     2800000000000,
			PERatio:       32.1,
			DividendYield: 0.0075,
		},
		"TSLA": {
			Symbol:    "TSLA",
			Name:      "Tesla Inc",
			Sector:    "Consumer Cyclical",
			Industry:  "Auto Manufacturers",
			MarketCap: 700000000000,
			PERatio:   60.2,
		},
	}

	if p, ok := profiles[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return nil, services.ErrSymbolNotFound
}

var (
	_ services.ForecastGenerator    = (*MockForecaster)(nil)
	_ services.FundamentalsProvider = (*MockFundamentalsService)(nil)
)
