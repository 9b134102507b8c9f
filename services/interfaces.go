package services

import (
	"context"

	"invest-desk/models"
)

// QuoteProvider is a live quote and history source
type QuoteProvider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*models.QuoteSnapshot, error)
	GetHistory(ctx context.Context, symbol string, req models.HistoryRequest) ([]models.Bar, error)
}

// FundamentalsProvider supplies descriptive company data for cache metadata
type FundamentalsProvider interface {
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// ForecastGenerator produces forecast points for a symbol
type ForecastGenerator interface {
	Generate(ctx context.Context, symbol string) ([]models.PricePoint, error)
}

// Authenticator resolves a bearer token to a user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Compile-time interface verification
var (
	_ QuoteProvider        = (*YahooService)(nil)
	_ QuoteProvider        = (*AlpacaService)(nil)
	_ FundamentalsProvider = (*AlphaVantageService)(nil)
	_ ForecastGenerator    = (*ProcessForecaster)(nil)
	_ Authenticator        = (*SupabaseAuthenticator)(nil)
)
