package mocks

import "time"

// ChartBar is one daily bar served by the mock chart endpoint.
type ChartBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ChartMeta is the quote metadata attached to a chart response.
type ChartMeta struct {
	LongName         string
	ShortName        string
	Currency         string
	Price            float64
	PreviousClose    float64
	FiftyTwoWeekHigh float64
	FiftyTwoWeekLow  float64
}

// Chart is a symbol's configured chart data.
type Chart struct {
	Meta ChartMeta
	Bars []ChartBar
}

// chartEnvelope mirrors the v8 chart response shape.
type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators chartIndicators `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	LongName           string  `json:"longName,omitempty"`
	ShortName          string  `json:"shortName,omitempty"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
	PreviousClose      float64 `json:"previousClose,omitempty"`
	FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow,omitempty"`
}

type chartIndicators struct {
	Quote []chartQuote `json:"quote"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// authUser mirrors the hosted auth provider's user payload.
type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}
