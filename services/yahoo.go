package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"invest-desk/models"
	"invest-desk/observability"
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooService reads quotes and history from the Yahoo Finance chart API
type YahooService struct {
	httpClient *http.Client
	baseURL    string
}

// NewYahooService creates a new YahooService instance
func NewYahooService(baseURL string, timeout time.Duration) *YahooService {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name identifies the provider in logs, metrics and breaker status
func (s *YahooService) Name() string { return BreakerYahoo }

// yahooChart is the response structure from the chart API
type yahooChart struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol               string  `json:"symbol"`
		Currency             string  `json:"currency"`
		LongName             string  `json:"longName"`
		ShortName            string  `json:"shortName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		RegularMarketVolume  int64   `json:"regularMarketVolume"`
		RegularMarketTime    int64   `json:"regularMarketTime"`
		PreviousClose        float64 `json:"previousClose"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetQuote returns the current quote for a symbol
func (s *YahooService) GetQuote(ctx context.Context, symbol string) (*models.QuoteSnapshot, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "quote")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (*models.QuoteSnapshot, error) {
		params := url.Values{}
		params.Set("range", "5d")
		params.Set("interval", "1d")

		chart, err := s.fetchChart(ctx, symbol, params)
		if err != nil {
			return nil, err
		}
		return quoteFromChart(symbol, chart), nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "quote", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	return result, nil
}

// GetHistory returns bars for a symbol over the requested window
func (s *YahooService) GetHistory(ctx context.Context, symbol string, req models.HistoryRequest) ([]models.Bar, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "history")
	timer := metrics.NewTimer()

	granularity := req.Granularity
	if granularity == "" {
		granularity = models.GranularityDaily
	}

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() ([]models.Bar, error) {
		params := url.Values{}
		params.Set("period1", strconv.FormatInt(req.From.Unix(), 10))
		params.Set("period2", strconv.FormatInt(req.To.Unix(), 10))
		params.Set("interval", string(granularity))
		params.Set("includeAdjustedClose", "true")

		chart, err := s.fetchChart(ctx, symbol, params)
		if err != nil {
			return nil, err
		}
		return barsFromChart(symbol, chart), nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "history")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "history", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	return result, nil
}

func (s *YahooService) fetchChart(ctx context.Context, symbol string, params url.Values) (*yahooChartResult, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSymbolNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w", decodeErr)
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, ErrSymbolNotFound
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrSymbolNotFound
	}
	return &chart.Chart.Result[0], nil
}

func barsFromChart(symbol string, r *yahooChartResult) []models.Bar {
	bars := make([]models.Bar, 0, len(r.Timestamp))
	if len(r.Indicators.Quote) == 0 {
		return bars
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	for i, ts := range r.Timestamp {
		c := at(q.Close, i)
		if c <= 0 {
			continue // null bars (holidays, halted sessions)
		}
		bars = append(bars, models.Bar{
			Symbol:   symbol,
			Date:     time.Unix(ts, 0).UTC(),
			Open:     at(q.Open, i),
			High:     at(q.High, i),
			Low:      at(q.Low, i),
			Close:    c,
			AdjClose: at(adj, i),
			Volume:   int64(at(q.Volume, i)),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func quoteFromChart(symbol string, r *yahooChartResult) *models.QuoteSnapshot {
	bars := barsFromChart(symbol, r)
	m := r.Meta

	q := &models.QuoteSnapshot{
		Symbol:               symbol,
		LongName:             m.LongName,
		ShortName:            m.ShortName,
		Currency:             m.Currency,
		RegularMarketPrice:   m.RegularMarketPrice,
		RegularMarketDayHigh: m.RegularMarketDayHigh,
		RegularMarketDayLow:  m.RegularMarketDayLow,
		RegularMarketVolume:  m.RegularMarketVolume,
		FiftyTwoWeekHigh:     m.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:      m.FiftyTwoWeekLow,
		Timestamp:            time.Unix(m.RegularMarketTime, 0).UTC(),
	}

	if n := len(bars); n > 0 {
		last := bars[n-1]
		q.RegularMarketOpen = last.Open
		if q.RegularMarketPrice == 0 {
			q.RegularMarketPrice = last.Close
		}
		if q.RegularMarketDayHigh == 0 {
			q.RegularMarketDayHigh = last.High
		}
		if q.RegularMarketDayLow == 0 {
			q.RegularMarketDayLow = last.Low
		}
		if q.RegularMarketVolume == 0 {
			q.RegularMarketVolume = last.Volume
		}
		if n > 1 {
			q.RegularMarketPreviousClose = bars[n-2].Close
		}
	}
	if q.RegularMarketPreviousClose == 0 {
		q.RegularMarketPreviousClose = m.PreviousClose
	}
	if q.RegularMarketPreviousClose == 0 {
		q.RegularMarketPreviousClose = m.ChartPreviousClose
	}
	return q
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
