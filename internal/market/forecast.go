package market

import (
	"context"
	"time"

	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/services"

	"golang.org/x/sync/singleflight"
)

// Forecast outcomes recorded on the forecast runs counter
const (
	ForecastCached    = "cached"
	ForecastGenerated = "generated"
	ForecastFailed    = "failed"
)

// ForecastOrchestrator returns a symbol's cached forecast or generates and
// stores a new one. Concurrent generations for one symbol share a single run.
type ForecastOrchestrator struct {
	generator services.ForecastGenerator
	gateway   *Gateway
	timeout   time.Duration
	group     singleflight.Group
}

// NewForecastOrchestrator creates a ForecastOrchestrator. A nil generator
// serves cached forecasts only.
func NewForecastOrchestrator(generator services.ForecastGenerator, gateway *Gateway, timeout time.Duration) *ForecastOrchestrator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ForecastOrchestrator{
		generator: generator,
		gateway:   gateway,
		timeout:   timeout,
	}
}

// EnsureForecast returns the forecast for symbol. row is the already loaded
// cache row and may be nil. The second result is false when no forecast is
// available.
func (o *ForecastOrchestrator) EnsureForecast(ctx context.Context, symbol string, row *models.CachedSeriesRow) ([]models.PricePoint, bool) {
	metrics := observability.GetMetrics()
	symbol = models.NormalizeSymbol(symbol)

	if cached := CachedForecast(row); len(cached) > 0 {
		metrics.RecordForecast(ForecastCached)
		return cached, true
	}
	if o.generator == nil {
		metrics.RecordForecast(ForecastFailed)
		return nil, false
	}

	ch := o.group.DoChan(symbol, func() (any, error) {
		// the run outlives any single waiting request
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()

		points, err := o.generator.Generate(genCtx, symbol)
		if err != nil {
			return nil, err
		}
		o.gateway.SaveForecast(genCtx, models.NewForecastRun(symbol, points))
		return points, nil
	})

	select {
	case <-ctx.Done():
		observability.WithSymbol(symbol).Debug("caller stopped waiting for forecast", "error", ctx.Err())
		return nil, false
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordForecast(ForecastFailed)
			observability.WithSymbol(symbol).Warn("forecast unavailable", "error", res.Err)
			return nil, false
		}
		metrics.RecordForecast(ForecastGenerated)
		return res.Val.([]models.PricePoint), true
	}
}
