// Package series turns loosely shaped price payloads into canonical,
// date-ordered price series.
package series

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number returns the first value among keys that is a finite number or a
// numeric string. Keys that are present but unusable are skipped.
func Number(record map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// NumberOr is Number with a fallback value
func NumberOr(record map[string]any, fallback float64, keys ...string) float64 {
	if f, ok := Number(record, keys...); ok {
		return f
	}
	return fallback
}

// Text returns the first non-empty string value among keys
func Text(record map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := record[key].(string)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "none") || strings.EqualFold(v, "null") {
			continue
		}
		return v, true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
