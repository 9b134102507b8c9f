package market

import (
	"math"
	"reflect"
	"testing"
)

func TestPaginate(t *testing.T) {
	universe := []string{"aapl", "MSFT", "TSLA", "NVDA", "AMZN"}

	tests := []struct {
		name        string
		offset      int
		limit       int
		wantSymbols []string
		wantMore    bool
	}{
		{"first page", 0, 2, []string{"AAPL", "MSFT"}, true},
		{"middle page", 2, 2, []string{"TSLA", "NVDA"}, true},
		{"last partial page", 4, 2, []string{"AMZN"}, false},
		{"exact end", 3, 2, []string{"NVDA", "AMZN"}, false},
		{"beyond end", 9, 2, []string{}, false},
		{"negative offset", -3, 1, []string{"AAPL"}, true},
		{"no limit", 0, 0, []string{"AAPL", "MSFT", "TSLA", "NVDA", "AMZN"}, false},
		{"huge limit", 1, math.MaxInt, []string{"MSFT", "TSLA", "NVDA", "AMZN"}, false},
		{"huge limit beyond end", 9, math.MaxInt, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(universe, tt.offset, tt.limit)
			if !reflect.DeepEqual(page.Symbols, tt.wantSymbols) {
				t.Errorf("symbols = %v, want %v", page.Symbols, tt.wantSymbols)
			}
			if page.HasMore != tt.wantMore {
				t.Errorf("hasMore = %v, want %v", page.HasMore, tt.wantMore)
			}
			if page.Total != len(universe) {
				t.Errorf("total = %d, want %d", page.Total, len(universe))
			}
		})
	}
}
