// Package market answers stock listing, detail and portfolio queries from the
// price cache, falling back to the live quote provider when the cache cannot
// answer.
package market

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"invest-desk/analytics"
	"invest-desk/config"
	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/repository"
	"invest-desk/series"
	"invest-desk/services"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoData is returned when neither the cache nor the live provider has prices for a symbol
	ErrNoData = errors.New("no data available")

	// ErrInvalidSymbol is returned for symbols that cannot be a ticker
	ErrInvalidSymbol = errors.New("invalid symbol")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// ValidateSymbol checks a normalized ticker symbol
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidSymbol)
	}
	if len(symbol) > 10 {
		return fmt.Errorf("%w: symbol too long (max 10 characters)", ErrInvalidSymbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: alphanumeric, dots, and dashes only", ErrInvalidSymbol)
	}
	return nil
}

// Deps are the collaborators a Service is built from. Any provider may be nil.
type Deps struct {
	Store        repository.Store
	Quotes       services.QuoteProvider
	Forecaster   services.ForecastGenerator
	Fundamentals services.FundamentalsProvider
}

// Service answers stock and portfolio queries
type Service struct {
	cfg          config.MarketConfig
	gateway      *Gateway
	fallback     *Fallback
	forecasts    *ForecastOrchestrator
	fundamentals services.FundamentalsProvider
	tickers      repository.TickerStore
	timeout      time.Duration
	now          func() time.Time
}

// NewService wires a Service from configuration and collaborators
func NewService(cfg *config.Config, deps Deps) *Service {
	quoteTimeout := time.Duration(cfg.Quotes.TimeoutSeconds) * time.Second
	forecastTimeout := time.Duration(cfg.Forecast.TimeoutSeconds) * time.Second

	var store repository.PriceCacheStore
	var tickers repository.TickerStore
	if deps.Store != nil {
		store = deps.Store
		tickers = deps.Store
	}

	gateway := NewGateway(store)
	return &Service{
		cfg:          cfg.Market,
		gateway:      gateway,
		fallback:     NewFallback(deps.Quotes, quoteTimeout, cfg.Market.FetchConcurrency),
		forecasts:    NewForecastOrchestrator(deps.Forecaster, gateway, forecastTimeout),
		fundamentals: deps.Fundamentals,
		tickers:      tickers,
		timeout:      quoteTimeout,
		now:          time.Now,
	}
}

// Universe returns the configured listing symbols
func (s *Service) Universe() []string {
	return append([]string(nil), s.cfg.Universe...)
}

// ClampDays applies the default and maximum window sizes
func (s *Service) ClampDays(days int) int {
	if days <= 0 {
		return s.cfg.DefaultDays
	}
	return min(days, s.cfg.MaxDays)
}

// ListStocks returns one page of listing summaries. Cached symbols are served
// from the cache; the rest are fetched live, and symbols with no data at all
// are left out of the page.
func (s *Service) ListStocks(ctx context.Context, offset, limit int) models.StockPage {
	if limit <= 0 {
		limit = s.cfg.ListPageSize
	}
	page := Paginate(s.cfg.Universe, offset, limit)
	rows := s.gateway.CachedSeriesBatch(ctx, page.Symbols)

	summaries := make(map[string]models.StockSummary, len(page.Symbols))
	var missing []string
	for _, symbol := range page.Symbols {
		row := rows[symbol]
		points := CachedPoints(row)
		if len(points) == 0 {
			missing = append(missing, symbol)
			continue
		}
		var meta map[string]any
		if row != nil {
			meta = row.Metadata
		}
		if summary, ok := summaryFromSeries(symbol, companyName(symbol, meta, nil), points); ok {
			summaries[symbol] = summary
		}
	}

	for symbol, quote := range s.fallback.FetchQuotes(ctx, missing) {
		summaries[symbol] = summaryFromQuote(symbol, quote)
	}

	stocks := make([]models.StockSummary, 0, len(page.Symbols))
	for _, symbol := range page.Symbols {
		if summary, ok := summaries[symbol]; ok {
			stocks = append(stocks, summary)
		}
	}

	return models.StockPage{
		Stocks:  stocks,
		Total:   page.Total,
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.HasMore,
	}
}

// GetStock returns the detail view for symbol over the last days days
func (s *Service) GetStock(ctx context.Context, symbol string, days int) (*models.StockDetail, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	days = s.ClampDays(days)
	now := s.now()

	row, _ := s.gateway.CachedSeries(ctx, symbol)
	var meta map[string]any
	if row != nil {
		meta = row.Metadata
	}

	if full := CachedPoints(row); len(full) > 0 {
		var forecast []models.PricePoint
		var extra map[string]any

		var g errgroup.Group
		g.Go(func() error {
			forecast, _ = s.forecasts.EnsureForecast(ctx, symbol, row)
			return nil
		})
		g.Go(func() error {
			extra = s.enrich(ctx, symbol, meta)
			return nil
		})
		g.Wait()

		detail := assembleDetail(resolved{
			symbol: symbol,
			source: models.SourceCache,
			full:   full,
			window: analytics.Window(full, days, now),
		}, forecast, mergeMetadata(meta, extra))
		return &detail, nil
	}

	var (
		quote    *models.QuoteSnapshot
		bars     []models.Bar
		forecast []models.PricePoint
		extra    map[string]any
	)
	var g errgroup.Group
	g.Go(func() error {
		q, err := s.fallback.FetchQuote(ctx, symbol)
		if err != nil {
			if !errors.Is(err, services.ErrSymbolNotFound) {
				observability.WithSymbol(symbol).Warn("live quote fetch failed", "error", err)
			}
			return nil
		}
		quote = q
		return nil
	})
	g.Go(func() error {
		bars = s.fallback.FetchHistory(ctx, symbol, days)
		return nil
	})
	g.Go(func() error {
		forecast, _ = s.forecasts.EnsureForecast(ctx, symbol, row)
		return nil
	})
	g.Go(func() error {
		extra = s.enrich(ctx, symbol, meta)
		return nil
	})
	g.Wait()

	points := series.FromBars(bars)
	if quote == nil && len(points) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	s.gateway.UpsertHistory(ctx, symbol, points)
	var live map[string]any
	if quote != nil {
		live = quoteMetadata(quote)
		s.gateway.SaveMetadata(ctx, symbol, live)
	}

	detail := assembleDetail(resolved{
		symbol: symbol,
		source: models.SourceLive,
		full:   points,
		window: analytics.Window(points, days, now),
		quote:  quote,
		bars:   bars,
	}, forecast, mergeMetadata(meta, live, extra))
	return &detail, nil
}

// GenerateForecast returns the forecast for symbol, regenerating it when
// force is set even if one is cached
func (s *Service) GenerateForecast(ctx context.Context, symbol string, force bool) ([]models.PricePoint, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	var row *models.CachedSeriesRow
	if !force {
		row, _ = s.gateway.CachedSeries(ctx, symbol)
	}
	points, ok := s.forecasts.EnsureForecast(ctx, symbol, row)
	if !ok {
		return nil, fmt.Errorf("%w for %s", services.ErrForecastFailed, symbol)
	}
	return points, nil
}

// RefreshReport summarizes a history refresh
type RefreshReport struct {
	Symbols   int
	Refreshed int
	Failed    []string
}

// RefreshHistory fetches the last days days for each symbol and writes any
// new dates to the cache
func (s *Service) RefreshHistory(ctx context.Context, symbols []string, days int) RefreshReport {
	report := RefreshReport{Symbols: len(symbols)}
	histories := s.fallback.FetchHistories(ctx, symbols, days)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.FetchConcurrency)
	for _, symbol := range symbols {
		symbol = models.NormalizeSymbol(symbol)
		g.Go(func() error {
			ok := s.gateway.UpsertHistory(ctx, symbol, series.FromBars(histories[symbol]))
			mu.Lock()
			defer mu.Unlock()
			if ok {
				report.Refreshed++
			} else {
				report.Failed = append(report.Failed, symbol)
			}
			return nil
		})
	}
	g.Wait()
	return report
}

// enrich fetches fundamentals for symbols whose metadata has no sector yet
// and stores them on the cache row
func (s *Service) enrich(ctx context.Context, symbol string, meta map[string]any) map[string]any {
	if s.fundamentals == nil {
		return nil
	}
	if _, ok := series.Text(meta, sectorKeys...); ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	f, err := s.fundamentals.GetFundamentals(ctx, symbol)
	if err != nil {
		observability.WithSymbol(symbol).Debug("fundamentals unavailable", "error", err)
		return nil
	}
	extra := f.Metadata()
	s.gateway.SaveMetadata(ctx, symbol, extra)
	return extra
}

// mergeMetadata overlays maps left to right into a new map
func mergeMetadata(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
