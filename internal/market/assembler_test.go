package market

import (
	"math"
	"testing"

	"invest-desk/models"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.9607843137, 1.96},
		{4.1666666667, 4.17},
		{2.675, 2.68},
		{-1.005, -1.01},
		{0, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLiveChange(t *testing.T) {
	tests := []struct {
		name       string
		quote      models.QuoteSnapshot
		wantChange float64
		wantPct    float64
	}{
		{"against open", models.QuoteSnapshot{RegularMarketPrice: 50, RegularMarketOpen: 48, RegularMarketPreviousClose: 40}, 2, 4.17},
		{"previous close without open", models.QuoteSnapshot{RegularMarketPrice: 50, RegularMarketPreviousClose: 40}, 10, 25},
		{"no base", models.QuoteSnapshot{RegularMarketPrice: 50}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, pct := liveChange(&tt.quote)
			if round2(change) != tt.wantChange || round2(pct) != tt.wantPct {
				t.Errorf("got %v, %v; want %v, %v", change, pct, tt.wantChange, tt.wantPct)
			}
		})
	}
}

func TestAssembleDetail_ChartFallsBackToFullSeries(t *testing.T) {
	full := []models.PricePoint{{Date: "2023-01-01", Price: 10}, {Date: "2023-06-01", Price: 20}}

	d := assembleDetail(resolved{symbol: "OLD", source: models.SourceCache, full: full}, nil, nil)

	if len(d.ChartData) != 2 {
		t.Errorf("expected full series as chart, got %v", d.ChartData)
	}
	if d.ForecastData == nil || len(d.ForecastData) != 0 {
		t.Errorf("expected empty non-nil forecast, got %#v", d.ForecastData)
	}
	if d.HistoryStart != "2023-01-01" {
		t.Errorf("historyStart = %s", d.HistoryStart)
	}
	if d.Week52High != 20 || d.Week52Low != 10 {
		t.Errorf("unexpected 52-week range %v/%v", d.Week52High, d.Week52Low)
	}
	if d.Company != "OLD" {
		t.Errorf("company should fall back to symbol, got %s", d.Company)
	}
}

func TestAssembleDetail_WindowStatsAndMetadata(t *testing.T) {
	full := []models.PricePoint{
		{Date: "2024-01-01", Price: 50},
		{Date: "2024-02-01", Price: 120},
		{Date: "2024-02-02", Price: 110.123},
		{Date: "2024-02-03", Price: 115},
	}
	meta := map[string]any{
		"longName":      "Example Corp",
		"marketCap":     "1000000",
		"trailingPE":    21.456,
		"sector":        "Industrials",
		"averageVolume": 5000.0,
	}

	d := assembleDetail(resolved{
		symbol: "EXM",
		source: models.SourceCache,
		full:   full,
		window: full[1:],
	}, []models.PricePoint{{Date: "2024-02-04", Price: 116.789}}, meta)

	if d.Open != 120 || d.High != 120 || d.Low != 110.12 {
		t.Errorf("window range = %v/%v/%v", d.Open, d.High, d.Low)
	}
	if d.Week52Low != 50 {
		t.Errorf("52-week low should use full history, got %v", d.Week52Low)
	}
	if d.Price != 115 || d.Change != 4.88 || d.ChangePercent != 4.24 {
		t.Errorf("price/change = %v/%v/%v", d.Price, d.Change, d.ChangePercent)
	}
	if d.Company != "Example Corp" || d.Sector != "Industrials" || d.MarketCap != 1e6 || d.PERatio != 21.46 {
		t.Errorf("unexpected metadata fields %+v", d)
	}
	if d.AvgVolume != 5000 {
		t.Errorf("avgVolume = %v", d.AvgVolume)
	}
	if d.ForecastData[0].Price != 116.79 {
		t.Errorf("forecast not rounded: %v", d.ForecastData)
	}
	if d.ChartData[1].Price != 110.12 {
		t.Errorf("chart not rounded: %v", d.ChartData)
	}
}

func TestSummaryFromSeries(t *testing.T) {
	if _, ok := summaryFromSeries("X", "X", nil); ok {
		t.Error("expected no summary for empty series")
	}

	s, ok := summaryFromSeries("ONE", "One", []models.PricePoint{{Date: "2024-01-01", Price: 42}})
	if !ok || s.Price != 42 || s.Change != 0 || s.ChangePercent != 0 {
		t.Errorf("single point summary = %+v", s)
	}
}

func TestCachedChange(t *testing.T) {
	tests := []struct {
		name       string
		latest     float64
		previous   float64
		wantChange float64
		wantPct    float64
	}{
		{"rise", 102, 100, 2, 1.96},
		{"fall", 98, 100, -2, -2.04},
		{"flat", 50, 50, 0, 0},
		{"zero latest", 0, 10, -10, 0},
		{"zero previous", 5, 0, 5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, pct := cachedChange(tt.latest, tt.previous)
			if round2(change) != tt.wantChange || round2(pct) != tt.wantPct {
				t.Errorf("cachedChange(%v, %v) = %v/%v, want %v/%v",
					tt.latest, tt.previous, round2(change), round2(pct), tt.wantChange, tt.wantPct)
			}
		})
	}

	s, ok := summaryFromSeries("AAPL", "Apple Inc.", []models.PricePoint{
		{Date: "2024-01-01", Price: 100},
		{Date: "2024-01-02", Price: 102},
	})
	if !ok || s.Change != 2 || s.ChangePercent != 1.96 {
		t.Errorf("cached summary = %+v, want change 2 and 1.96%%", s)
	}
}

func TestCompanyName(t *testing.T) {
	if got := companyName("AAPL", nil, nil); got != "Apple Inc." {
		t.Errorf("expected universe name, got %s", got)
	}
	if got := companyName("AAPL", nil, &models.QuoteSnapshot{ShortName: "Apple"}); got != "Apple" {
		t.Errorf("expected quote name, got %s", got)
	}
	if got := companyName("AAPL", map[string]any{"shortName": "Meta Name"}, &models.QuoteSnapshot{ShortName: "Apple"}); got != "Meta Name" {
		t.Errorf("expected metadata name, got %s", got)
	}
	if got := companyName("ZZZZ", nil, nil); got != "ZZZZ" {
		t.Errorf("expected symbol, got %s", got)
	}
}
