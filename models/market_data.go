package models

import (
	"time"
)

// QuoteSnapshot is a point-in-time quote from the market data provider.
// Field names follow the provider's regularMarket* vocabulary.
type QuoteSnapshot struct {
	Symbol                     string    `json:"symbol"`
	LongName                   string    `json:"longName,omitempty"`
	ShortName                  string    `json:"shortName,omitempty"`
	Currency                   string    `json:"currency,omitempty"`
	RegularMarketPrice         float64   `json:"regularMarketPrice"`
	RegularMarketOpen          float64   `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64   `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64   `json:"regularMarketDayLow"`
	RegularMarketVolume        int64     `json:"regularMarketVolume"`
	RegularMarketPreviousClose float64   `json:"regularMarketPreviousClose"`
	FiftyTwoWeekHigh           float64   `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64   `json:"fiftyTwoWeekLow"`
	Timestamp                  time.Time `json:"timestamp"`
}

// CompanyName returns the best display name available for the quote
func (q *QuoteSnapshot) CompanyName() string {
	if q.LongName != "" {
		return q.LongName
	}
	if q.ShortName != "" {
		return q.ShortName
	}
	return q.Symbol
}

// Bar represents OHLCV price data for a time period
type Bar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjClose,omitempty"`
	Volume   int64     `json:"volume"`
}

// Granularity is the bar interval requested from a history provider
type Granularity string

const (
	GranularityDaily  Granularity = "1d"
	GranularityWeekly Granularity = "1wk"
)

// HistoryRequest describes a historical window to fetch
type HistoryRequest struct {
	From        time.Time
	To          time.Time
	Granularity Granularity
}

// Fundamentals holds descriptive data merged into a cache row's metadata
type Fundamentals struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	MarketCap     float64 `json:"marketCap"`
	PERatio       float64 `json:"peRatio"`
	DividendYield float64 `json:"dividendYield"`
	Week52High    float64 `json:"fiftyTwoWeekHigh"`
	Week52Low     float64 `json:"fiftyTwoWeekLow"`
}

// Metadata converts fundamentals into cache metadata keys, skipping empty values
func (f *Fundamentals) Metadata() map[string]any {
	meta := make(map[string]any)
	if f.Name != "" {
		meta["longName"] = f.Name
	}
	if f.Sector != "" {
		meta["sector"] = f.Sector
	}
	if f.Industry != "" {
		meta["industry"] = f.Industry
	}
	if f.MarketCap > 0 {
		meta["marketCap"] = f.MarketCap
	}
	if f.PERatio > 0 {
		meta["trailingPE"] = f.PERatio
	}
	if f.DividendYield > 0 {
		meta["dividendYield"] = f.DividendYield
	}
	if f.Week52High > 0 {
		meta["fiftyTwoWeekHigh"] = f.Week52High
	}
	if f.Week52Low > 0 {
		meta["fiftyTwoWeekLow"] = f.Week52Low
	}
	return meta
}
