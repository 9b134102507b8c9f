// Package mocks provides HTTP mock servers for the external APIs used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer serves the chart API and the auth provider's user endpoint.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	charts map[string]Chart  // key: symbol
	users  map[string]string // key: bearer token, value: user id

	// Error injection
	chartError error

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		charts:     make(map[string]Chart),
		users:      make(map[string]string),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP routes requests to the matching mock handler.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := ""
	if r.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
		body = string(b)
	}
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleChart(w, r, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case path == "/auth/v1/user":
		m.handleUser(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// ChartRequests counts chart requests for a symbol.
func (m *MockServer) ChartRequests(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if req.Path == "/v8/finance/chart/"+symbol {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetChart configures the chart served for a symbol.
func (m *MockServer) SetChart(symbol string, chart Chart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts[symbol] = chart
}

// RemoveChart makes a symbol unknown to the chart API.
func (m *MockServer) RemoveChart(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charts, symbol)
}

// SetChartError makes every chart request fail with a 500.
func (m *MockServer) SetChartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartError = err
}

// SetUser registers a bearer token for a user id.
func (m *MockServer) SetUser(token, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[token] = userID
}

func (m *MockServer) setDefaults() {
	end := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)

	m.charts["AAPL"] = Chart{
		Meta: ChartMeta{LongName: "Apple Inc.", ShortName: "Apple", Currency: "USD"},
		Bars: GenerateBars(end, 60, 150),
	}
	m.charts["MSFT"] = Chart{
		Meta: ChartMeta{LongName: "Microsoft Corporation", ShortName: "Microsoft", Currency: "USD"},
		Bars: GenerateBars(end, 60, 400),
	}
	m.charts["TSLA"] = Chart{
		Meta: ChartMeta{LongName: "Tesla, Inc.", ShortName: "Tesla", Currency: "USD"},
		Bars: GenerateBars(end, 60, 200),
	}
}

func (m *MockServer) handleChart(w http.ResponseWriter, r *http.Request, symbol string) {
	m.mu.RLock()
	err := m.chartError
	chart, ok := m.charts[symbol]
	m.mu.RUnlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var env chartEnvelope
	if !ok {
		env.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(env)
		return
	}

	bars := filterBars(chart.Bars, r)
	env.Chart.Result = []chartResult{buildResult(symbol, chart.Meta, bars)}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

func (m *MockServer) handleUser(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	m.mu.RLock()
	id, ok := m.users[token]
	m.mu.RUnlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authUser{ID: id, Role: "authenticated"})
}

// filterBars applies the period1/period2 window of a chart request.
func filterBars(bars []ChartBar, r *http.Request) []ChartBar {
	var from, to int64
	fmt.Sscan(r.URL.Query().Get("period1"), &from)
	fmt.Sscan(r.URL.Query().Get("period2"), &to)
	if from == 0 && to == 0 {
		return bars
	}

	out := make([]ChartBar, 0, len(bars))
	for _, b := range bars {
		ts := b.Date.Unix()
		if from != 0 && ts < from {
			continue
		}
		if to != 0 && ts > to {
			continue
		}
		out = append(out, b)
	}
	return out
}

func buildResult(symbol string, meta ChartMeta, bars []ChartBar) chartResult {
	res := chartResult{
		Meta: chartMeta{
			Symbol:           symbol,
			Currency:         meta.Currency,
			LongName:         meta.LongName,
			ShortName:        meta.ShortName,
			PreviousClose:    meta.PreviousClose,
			FiftyTwoWeekHigh: meta.FiftyTwoWeekHigh,
			FiftyTwoWeekLow:  meta.FiftyTwoWeekLow,
		},
		Timestamp: make([]int64, 0, len(bars)),
	}

	var q chartQuote
	for _, b := range bars {
		res.Timestamp = append(res.Timestamp, b.Date.Unix())
		q.Open = append(q.Open, ptr(b.Open))
		q.High = append(q.High, ptr(b.High))
		q.Low = append(q.Low, ptr(b.Low))
		q.Close = append(q.Close, ptr(b.Close))
		q.Volume = append(q.Volume, ptr(float64(b.Volume)))
	}
	res.Indicators.Quote = []chartQuote{q}

	res.Meta.RegularMarketPrice = meta.Price
	if n := len(bars); n > 0 {
		if res.Meta.RegularMarketPrice == 0 {
			res.Meta.RegularMarketPrice = bars[n-1].Close
		}
		res.Meta.RegularMarketTime = bars[n-1].Date.Unix()
	}
	return res
}

// GenerateBars builds count consecutive daily bars ending at end,
// oscillating around base.
func GenerateBars(end time.Time, count int, base float64) []ChartBar {
	bars := make([]ChartBar, count)
	start := end.AddDate(0, 0, -(count - 1))
	for i := 0; i < count; i++ {
		variance := float64(i%10) - 5
		price := base + variance
		bars[i] = ChartBar{
			Date:   start.AddDate(0, 0, i),
			Open:   price - 1,
			High:   price + 2,
			Low:    price - 2,
			Close:  price,
			Volume: 1000000 + int64(i*10000),
		}
	}
	return bars
}

func ptr(v float64) *float64 {
	return &v
}
