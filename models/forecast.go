package models

import (
	"time"

	"github.com/google/uuid"
)

// ForecastRun is one successful invocation of the forecast generator
type ForecastRun struct {
	ID          uuid.UUID    `json:"id"`
	Symbol      string       `json:"symbol"`
	GeneratedAt time.Time    `json:"generated_at"`
	Points      []PricePoint `json:"points"`
}

// NewForecastRun stamps generated points with a fresh run id
func NewForecastRun(symbol string, points []PricePoint) *ForecastRun {
	return &ForecastRun{
		ID:          uuid.New(),
		Symbol:      symbol,
		GeneratedAt: time.Now().UTC(),
		Points:      points,
	}
}
