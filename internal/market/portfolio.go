package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-desk/analytics"
	"invest-desk/models"
	"invest-desk/series"
)

var errNoTickerStore = errors.New("ticker store not configured")

// Portfolio builds the dashboard view for a user's tracked tickers
func (s *Service) Portfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	if s.tickers == nil {
		return nil, errNoTickerStore
	}
	list, err := s.tickers.ListUserTickers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}

	tickers := make([]string, 0, len(list))
	for _, ut := range list {
		tickers = append(tickers, ut.StockTicker)
	}

	perf := analytics.PortfolioAggregate(s.histories(ctx, tickers, s.cfg.PortfolioDays))
	summary := analytics.Summarize(perf, len(tickers))
	summary.Daily = round2(summary.Daily)
	summary.Weekly = round2(summary.Weekly)
	summary.Monthly = round2(summary.Monthly)
	summary.Total = round2(summary.Total)

	return &models.Portfolio{
		Tickers:     tickers,
		Performance: roundPerformance(perf),
		Summary:     summary,
	}, nil
}

// AddTicker starts tracking ticker for a user. It reports false when the
// ticker was already tracked.
func (s *Service) AddTicker(ctx context.Context, userID, ticker string) (bool, error) {
	if s.tickers == nil {
		return false, errNoTickerStore
	}
	ticker = models.NormalizeSymbol(ticker)
	if err := ValidateSymbol(ticker); err != nil {
		return false, err
	}
	added, err := s.tickers.AddUserTicker(ctx, userID, ticker)
	if err != nil {
		return false, fmt.Errorf("failed to add ticker: %w", err)
	}
	return added, nil
}

// RemoveTicker stops tracking ticker for a user. It reports false when the
// ticker was not tracked.
func (s *Service) RemoveTicker(ctx context.Context, userID, ticker string) (bool, error) {
	if s.tickers == nil {
		return false, errNoTickerStore
	}
	ticker = models.NormalizeSymbol(ticker)
	if err := ValidateSymbol(ticker); err != nil {
		return false, err
	}
	removed, err := s.tickers.RemoveUserTicker(ctx, userID, ticker)
	if err != nil {
		return false, fmt.Errorf("failed to remove ticker: %w", err)
	}
	return removed, nil
}

// histories resolves the recent series for each symbol, from the cache when
// possible and live otherwise. Live results are written through to the cache.
func (s *Service) histories(ctx context.Context, symbols []string, days int) map[string][]models.PricePoint {
	out := make(map[string][]models.PricePoint, len(symbols))
	if len(symbols) == 0 {
		return out
	}
	now := s.now()

	rows := s.gateway.CachedSeriesBatch(ctx, symbols)
	var missing []string
	for _, symbol := range symbols {
		full := CachedPoints(rows[models.NormalizeSymbol(symbol)])
		if len(full) == 0 {
			missing = append(missing, symbol)
			continue
		}
		out[symbol] = recent(full, days, now)
	}

	for symbol, bars := range s.fallback.FetchHistories(ctx, missing, days) {
		points := series.FromBars(bars)
		if len(points) == 0 {
			continue
		}
		s.gateway.UpsertHistory(ctx, symbol, points)
		out[symbol] = recent(points, days, now)
	}
	return out
}

// recent is the days window of points, or all of them when the window is empty
func recent(points []models.PricePoint, days int, now time.Time) []models.PricePoint {
	if window := analytics.Window(points, days, now); len(window) > 0 {
		return window
	}
	return points
}
