package market

import (
	"math"

	"invest-desk/analytics"
	"invest-desk/models"
	"invest-desk/series"

	"github.com/shopspring/decimal"
)

// Metadata keys read from cache rows, in priority order
var (
	nameKeys          = []string{"longName", "shortName", "name", "companyName", "company"}
	volumeKeys        = []string{"volume", "regularMarketVolume"}
	avgVolumeKeys     = []string{"averageVolume", "avgVolume", "averageDailyVolume10Day", "averageDailyVolume3Month"}
	marketCapKeys     = []string{"marketCap", "market_cap", "MarketCapitalization"}
	peRatioKeys       = []string{"trailingPE", "peRatio", "pe_ratio", "PERatio", "forwardPE"}
	dividendYieldKeys = []string{"dividendYield", "dividend_yield", "trailingAnnualDividendYield"}
	sectorKeys        = []string{"sector", "Sector"}
	industryKeys      = []string{"industry", "Industry"}
)

// resolved is the price data a detail response is built from
type resolved struct {
	symbol string
	source string
	full   []models.PricePoint
	window []models.PricePoint

	// live path only
	quote *models.QuoteSnapshot
	bars  []models.Bar
}

// assembleDetail builds the detail response. Values stay at full precision
// until the final rounding pass.
func assembleDetail(r resolved, forecast []models.PricePoint, meta map[string]any) models.StockDetail {
	chart := r.window
	if len(chart) == 0 {
		chart = r.full
	}
	period := analytics.RangeStats(chart)
	week52 := analytics.RangeStats(r.full)

	d := models.StockDetail{
		StockSummary: models.StockSummary{
			Symbol:  r.symbol,
			Company: companyName(r.symbol, meta, r.quote),
		},
		Open:   period.Open,
		High:   period.High,
		Low:    period.Low,
		Source: r.source,
	}

	if q := r.quote; q != nil {
		d.Price = q.RegularMarketPrice
		d.Change, d.ChangePercent = liveChange(q)
		if q.RegularMarketOpen > 0 {
			d.Open = q.RegularMarketOpen
		}
		if q.RegularMarketDayHigh > 0 {
			d.High = q.RegularMarketDayHigh
		}
		if q.RegularMarketDayLow > 0 {
			d.Low = q.RegularMarketDayLow
		}
		d.Volume = float64(q.RegularMarketVolume)
		if q.FiftyTwoWeekHigh > 0 {
			week52.High = q.FiftyTwoWeekHigh
		}
		if q.FiftyTwoWeekLow > 0 {
			week52.Low = q.FiftyTwoWeekLow
		}
	} else if latest, previous, ok := analytics.LatestAndPrevious(r.full); ok {
		d.Price = latest.Price
		d.Change, d.ChangePercent = cachedChange(latest.Price, previous.Price)
	}

	d.Week52High = week52.High
	d.Week52Low = week52.Low
	if len(r.full) > 0 {
		d.HistoryStart = r.full[0].Date
	}

	if d.Volume == 0 {
		d.Volume = series.NumberOr(meta, 0, volumeKeys...)
	}
	if len(r.bars) > 0 {
		d.AvgVolume = analytics.AverageVolume(r.bars)
	} else {
		d.AvgVolume = series.NumberOr(meta, 0, avgVolumeKeys...)
	}
	d.MarketCap = series.NumberOr(meta, 0, marketCapKeys...)
	d.PERatio = series.NumberOr(meta, 0, peRatioKeys...)
	d.DividendYield = series.NumberOr(meta, 0, dividendYieldKeys...)
	d.Sector, _ = series.Text(meta, sectorKeys...)
	d.Industry, _ = series.Text(meta, industryKeys...)

	d.ChartData = roundPoints(chart)
	d.ForecastData = roundPoints(forecast)
	return roundDetail(d)
}

// summaryFromSeries builds a listing row from a cached series
func summaryFromSeries(symbol, company string, points []models.PricePoint) (models.StockSummary, bool) {
	latest, previous, ok := analytics.LatestAndPrevious(points)
	if !ok {
		return models.StockSummary{}, false
	}
	change, pct := cachedChange(latest.Price, previous.Price)
	return models.StockSummary{
		Symbol:        symbol,
		Company:       company,
		Price:         round2(latest.Price),
		Change:        round2(change),
		ChangePercent: round2(pct),
	}, true
}

// cachedChange measures the last cached close against the one before it.
// The percentage is relative to the latest price.
func cachedChange(latest, previous float64) (change, pct float64) {
	change = latest - previous
	if latest == 0 {
		return change, 0
	}
	return change, change / latest * 100
}

// summaryFromQuote builds a listing row from a live quote
func summaryFromQuote(symbol string, q *models.QuoteSnapshot) models.StockSummary {
	change, pct := liveChange(q)
	return models.StockSummary{
		Symbol:        symbol,
		Company:       companyName(symbol, nil, q),
		Price:         round2(q.RegularMarketPrice),
		Change:        round2(change),
		ChangePercent: round2(pct),
	}
}

// liveChange measures a quote against the day's open, or the previous close
// when the provider has no open yet
func liveChange(q *models.QuoteSnapshot) (change, pct float64) {
	base := q.RegularMarketOpen
	if base <= 0 {
		base = q.RegularMarketPreviousClose
	}
	if base <= 0 {
		return 0, 0
	}
	return q.RegularMarketPrice - base, analytics.PercentChange(q.RegularMarketPrice, base)
}

func companyName(symbol string, meta map[string]any, q *models.QuoteSnapshot) string {
	if name, ok := series.Text(meta, nameKeys...); ok {
		return name
	}
	if q != nil && (q.LongName != "" || q.ShortName != "") {
		return q.CompanyName()
	}
	if name, ok := CompanyNames[symbol]; ok {
		return name
	}
	return symbol
}

// quoteMetadata is the subset of a live quote worth keeping on the cache row
func quoteMetadata(q *models.QuoteSnapshot) map[string]any {
	meta := make(map[string]any)
	if q.LongName != "" {
		meta["longName"] = q.LongName
	}
	if q.ShortName != "" {
		meta["shortName"] = q.ShortName
	}
	if q.Currency != "" {
		meta["currency"] = q.Currency
	}
	if q.RegularMarketVolume > 0 {
		meta["volume"] = q.RegularMarketVolume
	}
	if q.FiftyTwoWeekHigh > 0 {
		meta["fiftyTwoWeekHigh"] = q.FiftyTwoWeekHigh
	}
	if q.FiftyTwoWeekLow > 0 {
		meta["fiftyTwoWeekLow"] = q.FiftyTwoWeekLow
	}
	return meta
}

func roundDetail(d models.StockDetail) models.StockDetail {
	d.Price = round2(d.Price)
	d.Change = round2(d.Change)
	d.ChangePercent = round2(d.ChangePercent)
	d.Open = round2(d.Open)
	d.High = round2(d.High)
	d.Low = round2(d.Low)
	d.Volume = round2(d.Volume)
	d.AvgVolume = round2(d.AvgVolume)
	d.Week52High = round2(d.Week52High)
	d.Week52Low = round2(d.Week52Low)
	d.MarketCap = round2(d.MarketCap)
	d.PERatio = round2(d.PERatio)
	d.DividendYield = round2(d.DividendYield)
	return d
}

func roundPoints(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(points))
	for i, p := range points {
		out[i] = models.PricePoint{Date: p.Date, Price: round2(p.Price)}
	}
	return out
}

func roundPerformance(perf []models.PortfolioPerformancePoint) []models.PortfolioPerformancePoint {
	out := make([]models.PortfolioPerformancePoint, len(perf))
	for i, p := range perf {
		out[i] = models.PortfolioPerformancePoint{Date: p.Date, PercentChange: round2(p.PercentChange)}
	}
	return out
}

// round2 rounds half away from zero to two decimal places
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
