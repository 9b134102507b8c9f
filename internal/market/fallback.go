package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/services"

	"golang.org/x/sync/errgroup"
)

// WeeklyThresholdDays is the longest window fetched at daily granularity
const WeeklyThresholdDays = 365

// Fallback fetches live quotes and history when the cache cannot answer.
// Every call carries its own timeout; history failures degrade to an empty
// result and batch failures drop only the failing symbol.
type Fallback struct {
	provider    services.QuoteProvider
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// NewFallback creates a Fallback over provider
func NewFallback(provider services.QuoteProvider, timeout time.Duration, concurrency int) *Fallback {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fallback{
		provider:    provider,
		timeout:     timeout,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// FetchQuote returns a live quote. Unknown symbols fail with services.ErrSymbolNotFound.
func (f *Fallback) FetchQuote(ctx context.Context, symbol string) (*models.QuoteSnapshot, error) {
	if f.provider == nil {
		return nil, errors.New("no quote provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.provider.GetQuote(ctx, models.NormalizeSymbol(symbol))
}

// HistoryRequestFor builds the provider request covering the last days days
func HistoryRequestFor(days int, now time.Time) models.HistoryRequest {
	granularity := models.GranularityDaily
	if days > WeeklyThresholdDays {
		granularity = models.GranularityWeekly
	}
	return models.HistoryRequest{
		From:        now.AddDate(0, 0, -days),
		To:          now,
		Granularity: granularity,
	}
}

// FetchHistory returns live bars for the last days days, or nil on any failure
func (f *Fallback) FetchHistory(ctx context.Context, symbol string, days int) []models.Bar {
	if f.provider == nil {
		return nil
	}
	symbol = models.NormalizeSymbol(symbol)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	bars, err := f.provider.GetHistory(ctx, symbol, HistoryRequestFor(days, f.now()))
	if err != nil {
		observability.WithSymbol(symbol).Warn("live history fetch failed",
			"provider", f.provider.Name(), "days", days, "error", err)
		return nil
	}
	return bars
}

// FetchQuotes fetches quotes for symbols concurrently. Symbols that fail are
// logged and left out of the result.
func (f *Fallback) FetchQuotes(ctx context.Context, symbols []string) map[string]*models.QuoteSnapshot {
	out := make(map[string]*models.QuoteSnapshot, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			quote, err := f.FetchQuote(ctx, symbol)
			if err != nil {
				observability.WithSymbol(symbol).Warn("live quote fetch failed, omitting symbol", "error", err)
				return nil
			}
			mu.Lock()
			out[models.NormalizeSymbol(symbol)] = quote
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

// FetchHistories fetches history for symbols concurrently. Failing symbols are
// absent from the result.
func (f *Fallback) FetchHistories(ctx context.Context, symbols []string, days int) map[string][]models.Bar {
	out := make(map[string][]models.Bar, len(symbols))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			bars := f.FetchHistory(ctx, symbol, days)
			if len(bars) == 0 {
				return nil
			}
			mu.Lock()
			out[models.NormalizeSymbol(symbol)] = bars
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}
