package market

import "invest-desk/models"

// CompanyNames holds display names for the default listing universe
var CompanyNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com, Inc.",
	"NVDA":  "NVIDIA Corporation",
	"META":  "Meta Platforms, Inc.",
	"TSLA":  "Tesla, Inc.",
	"BRK-B": "Berkshire Hathaway Inc.",
	"JPM":   "JPMorgan Chase & Co.",
	"V":     "Visa Inc.",
	"JNJ":   "Johnson & Johnson",
	"WMT":   "Walmart Inc.",
	"PG":    "The Procter & Gamble Company",
	"MA":    "Mastercard Incorporated",
	"HD":    "The Home Depot, Inc.",
	"DIS":   "The Walt Disney Company",
	"NFLX":  "Netflix, Inc.",
	"KO":    "The Coca-Cola Company",
	"PEP":   "PepsiCo, Inc.",
	"INTC":  "Intel Corporation",
}

// Page is one slice of the symbol universe
type Page struct {
	Symbols []string
	Total   int
	Offset  int
	Limit   int
	HasMore bool
}

// Paginate returns the symbols in [offset, offset+limit) of universe.
// Out-of-range offsets yield an empty page.
func Paginate(universe []string, offset, limit int) Page {
	total := len(universe)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = total
	}
	start := min(offset, total)
	end := start + min(limit, total-start)

	symbols := make([]string, 0, end-start)
	for _, s := range universe[start:end] {
		symbols = append(symbols, models.NormalizeSymbol(s))
	}
	return Page{
		Symbols: symbols,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: end < total,
	}
}
