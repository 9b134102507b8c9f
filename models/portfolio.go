package models

import (
	"time"
)

// UserTicker is a symbol tracked by a user. (UserID, StockTicker) is unique.
type UserTicker struct {
	UserID      string    `json:"user_id"`
	StockTicker string    `json:"stock_ticker"`
	CreatedAt   time.Time `json:"created_at"`
}

// PortfolioPerformancePoint is the average percent change across a user's
// tickers on one date, each measured from its own first point.
type PortfolioPerformancePoint struct {
	Date          string  `json:"date"`
	PercentChange float64 `json:"percentChange"`
}

// PortfolioSummary holds the period deltas of the performance curve
type PortfolioSummary struct {
	Daily       float64 `json:"daily"`
	Weekly      float64 `json:"weekly"`
	Monthly     float64 `json:"monthly"`
	Total       float64 `json:"total"`
	TickerCount int     `json:"tickerCount"`
}

// Portfolio is the dashboard response for a user
type Portfolio struct {
	Tickers     []string                    `json:"tickers"`
	Performance []PortfolioPerformancePoint `json:"performance"`
	Summary     PortfolioSummary            `json:"summary"`
}
