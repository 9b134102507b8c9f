package models

// StockSummary is the listing row returned for each symbol
type StockSummary struct {
	Symbol        string  `json:"symbol"`
	Company       string  `json:"company"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// StockDetail is the extended per-symbol response
type StockDetail struct {
	StockSummary
	Open          float64      `json:"open"`
	High          float64      `json:"high"`
	Low           float64      `json:"low"`
	Volume        float64      `json:"volume"`
	AvgVolume     float64      `json:"avgVolume"`
	Week52High    float64      `json:"week52High"`
	Week52Low     float64      `json:"week52Low"`
	HistoryStart  string       `json:"historyStart,omitempty"`
	MarketCap     float64      `json:"marketCap"`
	PERatio       float64      `json:"peRatio"`
	DividendYield float64      `json:"dividendYield"`
	Sector        string       `json:"sector"`
	Industry      string       `json:"industry"`
	Source        string       `json:"source"`
	ChartData     []PricePoint `json:"chartData"`
	ForecastData  []PricePoint `json:"forecastData"`
}

// Data sources reported on StockDetail.Source
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// StockPage is a page of the symbol universe
type StockPage struct {
	Stocks  []StockSummary `json:"stocks"`
	Total   int            `json:"total"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"hasMore"`
}
