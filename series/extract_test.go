package series

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		keys   []string
		want   float64
		wantOK bool
	}{
		{"first key wins", map[string]any{"price": 10.5, "close": 11.0}, []string{"price", "close"}, 10.5, true},
		{"falls through missing key", map[string]any{"close": 11.0}, []string{"price", "close"}, 11.0, true},
		{"numeric string", map[string]any{"close": " 1,234.50 "}, []string{"close"}, 1234.5, true},
		{"json number", map[string]any{"value": json.Number("42")}, []string{"value"}, 42, true},
		{"int", map[string]any{"volume": 1500}, []string{"volume"}, 1500, true},
		{"unparsable string skipped", map[string]any{"price": "n/a", "close": 3.0}, []string{"price", "close"}, 3.0, true},
		{"nil skipped", map[string]any{"price": nil, "close": 4.0}, []string{"price", "close"}, 4.0, true},
		{"NaN rejected", map[string]any{"price": math.NaN()}, []string{"price"}, 0, false},
		{"Inf rejected", map[string]any{"price": math.Inf(1)}, []string{"price"}, 0, false},
		{"bool rejected", map[string]any{"price": true}, []string{"price"}, 0, false},
		{"no keys present", map[string]any{"foo": 1.0}, []string{"price"}, 0, false},
		{"nil record", nil, []string{"price"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.record, tt.keys...)
			if ok != tt.wantOK {
				t.Fatalf("Number() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Number() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNumberOr(t *testing.T) {
	record := map[string]any{"avgVolume": "abc"}
	if got := NumberOr(record, 7, "avgVolume", "averageVolume"); got != 7 {
		t.Errorf("NumberOr() = %v, want fallback 7", got)
	}
}

func TestText(t *testing.T) {
	record := map[string]any{
		"sector":   "  ",
		"Sector":   "Technology",
		"industry": "None",
		"name":     42,
	}

	if got, ok := Text(record, "sector", "Sector"); !ok || got != "Technology" {
		t.Errorf("Text() = %q, %v; want Technology", got, ok)
	}
	if _, ok := Text(record, "industry"); ok {
		t.Error("expected None to be treated as missing")
	}
	if _, ok := Text(record, "name"); ok {
		t.Error("expected non-string value to be skipped")
	}
}
