package services

import (
	"context"
	"fmt"
	"time"

	"invest-desk/models"
	"invest-desk/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpacaDataClient is the subset of the marketdata client used here
type alpacaDataClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService reads quotes and history from Alpaca market data
type AlpacaService struct {
	dataClient alpacaDataClient
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret, dataURL string) *AlpacaService {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaService{
		dataClient: marketdata.NewClient(opts),
	}
}

// newAlpacaServiceWithClient creates an AlpacaService with a custom client (for testing)
func newAlpacaServiceWithClient(client alpacaDataClient) *AlpacaService {
	return &AlpacaService{dataClient: client}
}

// Name identifies the provider in logs, metrics and breaker status
func (s *AlpacaService) Name() string { return BreakerAlpaca }

// GetQuote builds a quote from the latest snapshot for a symbol
func (s *AlpacaService) GetQuote(ctx context.Context, symbol string) (*models.QuoteSnapshot, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "quote")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() (*models.QuoteSnapshot, error) {
		snap, err := callWithContext(ctx, func() (*marketdata.Snapshot, error) {
			return s.dataClient.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
		})
		if err != nil {
			return nil, err
		}
		if snap == nil || (snap.DailyBar == nil && snap.LatestTrade == nil) {
			return nil, ErrSymbolNotFound
		}
		return quoteFromSnapshot(symbol, snap), nil
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "quote", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	return result, nil
}

// GetHistory returns bars for a symbol over the requested window
func (s *AlpacaService) GetHistory(ctx context.Context, symbol string, req models.HistoryRequest) ([]models.Bar, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "history")
	timer := metrics.NewTimer()

	req = defaultAlpacaWindow(req)
	timeframe := marketdata.OneDay
	if req.Granularity == models.GranularityWeekly {
		timeframe = marketdata.NewTimeFrame(1, marketdata.Week)
	}

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() ([]models.Bar, error) {
		bars, err := callWithContext(ctx, func() ([]marketdata.Bar, error) {
			return s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
				TimeFrame: timeframe,
				Start:     req.From,
				End:       req.To,
			})
		})
		if err != nil {
			return nil, err
		}

		out := make([]models.Bar, 0, len(bars))
		for _, bar := range bars {
			out = append(out, models.Bar{
				Symbol: symbol,
				Date:   bar.Timestamp.UTC(),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		return out, nil
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "history")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "history", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	return result, nil
}

func quoteFromSnapshot(symbol string, snap *marketdata.Snapshot) *models.QuoteSnapshot {
	q := &models.QuoteSnapshot{Symbol: symbol, Currency: "USD"}

	if snap.DailyBar != nil {
		q.RegularMarketOpen = snap.DailyBar.Open
		q.RegularMarketDayHigh = snap.DailyBar.High
		q.RegularMarketDayLow = snap.DailyBar.Low
		q.RegularMarketVolume = int64(snap.DailyBar.Volume)
		q.RegularMarketPrice = snap.DailyBar.Close
		q.Timestamp = snap.DailyBar.Timestamp.UTC()
	}
	if snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		q.RegularMarketPrice = snap.LatestTrade.Price
		q.Timestamp = snap.LatestTrade.Timestamp.UTC()
	}
	if snap.PrevDailyBar != nil {
		q.RegularMarketPreviousClose = snap.PrevDailyBar.Close
	}
	return q
}

// callWithContext runs a blocking SDK call and stops waiting once ctx is done.
// The marketdata client has no context support.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}

// defaultAlpacaWindow is used when callers pass a zero window
func defaultAlpacaWindow(req models.HistoryRequest) models.HistoryRequest {
	if req.To.IsZero() {
		req.To = time.Now().UTC()
	}
	if req.From.IsZero() {
		req.From = req.To.AddDate(-1, 0, 0)
	}
	return req
}
