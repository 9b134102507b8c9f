package series

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"invest-desk/models"
)

// ContainerFields are searched in order for the embedded sequence when a
// payload arrives as an object.
var ContainerFields = []string{
	"price_series", "series", "data", "values", "prices", "historical",
	"points", "entries", "items", "forecast", "forecasts",
}

// PriceKeys are tried in order to read a point's price
var PriceKeys = []string{
	"price", "Price", "close", "Close", "closing_price", "value",
	"adjClose", "adj_close", "predicted_price", "yhat",
}

// DateKeys are tried in order to read a point's date
var DateKeys = []string{"date", "Date"}

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"01/02/2006",
}

// maxDepth bounds how many wrapper layers are unwrapped
const maxDepth = 5

// Normalize converts an arbitrary payload into a date-ascending series.
// It never fails: unusable elements are dropped, and duplicate dates are
// kept for the caller to resolve.
func Normalize(raw any) []models.PricePoint {
	items := toSequence(raw, 0)
	points := make([]models.PricePoint, 0, len(items))

	for _, item := range items {
		record, ok := asRecord(item)
		if !ok {
			continue
		}
		price, ok := Number(record, PriceKeys...)
		if !ok {
			continue
		}
		date, ok := dateOf(record)
		if !ok {
			continue
		}
		points = append(points, models.PricePoint{Date: date, Price: price})
	}

	// zero-padded ISO dates sort correctly as strings
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

// Unique collapses repeated dates in a sorted series, keeping the last value
func Unique(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date == p.Date {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// FromBars converts provider bars into a sorted series of closing prices
func FromBars(bars []models.Bar) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 || b.Date.IsZero() {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  b.Date.Format(models.DateLayout),
			Price: b.Close,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return Unique(points)
}

// ParseDate formats a date-like value as YYYY-MM-DD. Timestamps keep the
// offset they were given in.
func ParseDate(v any) (string, bool) {
	switch d := v.(type) {
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return "", false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(models.DateLayout), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
		return "", false
	case time.Time:
		if d.IsZero() {
			return "", false
		}
		return d.Format(models.DateLayout), true
	default:
		if n, ok := toFloat(v); ok {
			return fromEpoch(n)
		}
		return "", false
	}
}

// fromEpoch accepts seconds or milliseconds since the Unix epoch
func fromEpoch(n float64) (string, bool) {
	if n <= 0 {
		return "", false
	}
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC().Format(models.DateLayout), true
	}
	return time.Unix(int64(n), 0).UTC().Format(models.DateLayout), true
}

func dateOf(record map[string]any) (string, bool) {
	for _, key := range DateKeys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		if d, ok := ParseDate(v); ok {
			return d, true
		}
	}
	return "", false
}

func toSequence(raw any, depth int) []any {
	if depth > maxDepth {
		return nil
	}

	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case string:
		return decodeSequence([]byte(v), depth)
	case []byte:
		return decodeSequence(v, depth)
	case json.RawMessage:
		return decodeSequence(v, depth)
	case map[string]any:
		for _, field := range ContainerFields {
			inner, ok := v[field]
			if !ok {
				continue
			}
			if seq := toSequence(inner, depth+1); seq != nil {
				return seq
			}
		}
		return nil
	default:
		// typed values such as []models.PricePoint or []models.Bar
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return decodeSequence(b, depth)
	}
}

func decodeSequence(b []byte, depth int) []any {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil
	}
	return toSequence(decoded, depth+1)
}

func asRecord(item any) (map[string]any, bool) {
	switch v := item.(type) {
	case map[string]any:
		return v, true
	case nil, string, float64, bool, []any:
		return nil, false
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var record map[string]any
		if err := json.Unmarshal(b, &record); err != nil {
			return nil, false
		}
		return record, true
	}
}
