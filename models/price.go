package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for every series point.
const DateLayout = "2006-01-02"

// PricePoint is a single dated price in a series
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// CachedSeriesRow is one symbol's persisted cache state.
// PriceSeries and ForecastResults are kept as raw JSON because rows may have
// been written by other producers in shapes the normalizer has to tolerate.
type CachedSeriesRow struct {
	Symbol          string          `json:"symbol"`
	PriceSeries     json.RawMessage `json:"price_series"`
	ForecastResults json.RawMessage `json:"forecast_results,omitempty"`
	Metadata        map[string]any  `json:"metadata"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasForecast reports whether a forecast payload is stored at all
func (r *CachedSeriesRow) HasForecast() bool {
	if r == nil || len(r.ForecastResults) == 0 {
		return false
	}
	s := strings.TrimSpace(string(r.ForecastResults))
	return s != "null" && s != "[]" && s != "{}"
}

// NormalizeSymbol uppercases and trims a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
