// Package analytics holds the pure calculations run over normalized series.
// Inputs are expected sorted ascending with unique dates; nothing here does I/O.
package analytics

import (
	"math"
	"sort"
	"time"

	"invest-desk/models"
)

// Trading-day offsets used for portfolio period deltas
const (
	DailyOffset   = 1
	WeeklyOffset  = 5
	MonthlyOffset = 21
)

// Range holds open/high/low over a series
type Range struct {
	Open float64
	High float64
	Low  float64
}

// LatestAndPrevious returns the last point and the one before it. With a
// single point, previous equals latest so the change is zero.
func LatestAndPrevious(points []models.PricePoint) (latest, previous models.PricePoint, ok bool) {
	n := len(points)
	if n == 0 {
		return models.PricePoint{}, models.PricePoint{}, false
	}
	latest = points[n-1]
	previous = latest
	if n >= 2 {
		previous = points[n-2]
	}
	return latest, previous, true
}

// PercentChange is (latest-previous)/previous*100, or 0 when previous is 0.
func PercentChange(latest, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	pct := (latest - previous) / previous * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}

// RangeStats returns the first price and the extremes of a series
func RangeStats(points []models.PricePoint) Range {
	if len(points) == 0 {
		return Range{}
	}
	r := Range{Open: points[0].Price, High: points[0].Price, Low: points[0].Price}
	for _, p := range points[1:] {
		r.High = math.Max(r.High, p.Price)
		r.Low = math.Min(r.Low, p.Price)
	}
	return r
}

// Window keeps the points dated within the last days calendar days of now
func Window(points []models.PricePoint, days int, now time.Time) []models.PricePoint {
	if days <= 0 {
		return append([]models.PricePoint{}, points...)
	}
	cutoff := now.AddDate(0, 0, -days).Format(models.DateLayout)
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Date >= cutoff
	})
	return append([]models.PricePoint{}, points[i:]...)
}

// PortfolioAggregate averages each symbol's percent change from its own first
// point across the union of dates. Symbols whose baseline is not positive are
// left out entirely.
func PortfolioAggregate(histories map[string][]models.PricePoint) []models.PortfolioPerformancePoint {
	type acc struct {
		sum   float64
		count int
	}
	byDate := make(map[string]*acc)

	for _, points := range histories {
		if len(points) == 0 {
			continue
		}
		baseline := points[0].Price
		if baseline <= 0 {
			continue
		}
		for _, p := range points {
			a, ok := byDate[p.Date]
			if !ok {
				a = &acc{}
				byDate[p.Date] = a
			}
			a.sum += (p.Price - baseline) / baseline * 100
			a.count++
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]models.PortfolioPerformancePoint, 0, len(dates))
	for _, d := range dates {
		a := byDate[d]
		out = append(out, models.PortfolioPerformancePoint{
			Date:          d,
			PercentChange: a.sum / float64(a.count),
		})
	}
	return out
}

// PeriodDelta is the latest value minus the value offset points earlier.
// It is 0 when the series has no point that far back.
func PeriodDelta(perf []models.PortfolioPerformancePoint, offset int) float64 {
	n := len(perf)
	if offset < 0 || n <= offset {
		return 0
	}
	return perf[n-1].PercentChange - perf[n-1-offset].PercentChange
}

// Summarize computes the dashboard deltas for a performance curve
func Summarize(perf []models.PortfolioPerformancePoint, tickerCount int) models.PortfolioSummary {
	s := models.PortfolioSummary{
		Daily:       PeriodDelta(perf, DailyOffset),
		Weekly:      PeriodDelta(perf, WeeklyOffset),
		Monthly:     PeriodDelta(perf, MonthlyOffset),
		TickerCount: tickerCount,
	}
	if n := len(perf); n > 0 {
		s.Total = perf[n-1].PercentChange
	}
	return s
}

// AverageVolume is the mean volume across bars, or 0 for none
func AverageVolume(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var total float64
	for _, b := range bars {
		total += float64(b.Volume)
	}
	return total / float64(len(bars))
}
