package market

import (
	"context"
	"errors"
	"testing"

	"invest-desk/models"
	"invest-desk/repository"
)

func TestPortfolio_AggregatesCachedAndLive(t *testing.T) {
	store := repository.NewMemoryStore()
	store.PutRow(models.CachedSeriesRow{
		Symbol: "AAA",
		PriceSeries: rawSeries(t, []models.PricePoint{
			{Date: "2024-02-27", Price: 100},
			{Date: "2024-02-28", Price: 110},
		}),
	})
	quotes := newFakeQuotes()
	quotes.bars["BBB"] = dailyBars("BBB", testNow.AddDate(0, 0, -3), 50, 45)
	s := newTestService(t, Deps{Store: store, Quotes: quotes})
	ctx := context.Background()

	for _, ticker := range []string{"AAA", "bbb"} {
		if _, err := s.AddTicker(ctx, "user-1", ticker); err != nil {
			t.Fatalf("AddTicker(%s): %v", ticker, err)
		}
	}

	p, err := s.Portfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Tickers) != 2 || p.Tickers[1] != "BBB" {
		t.Errorf("unexpected tickers %v", p.Tickers)
	}
	want := []models.PortfolioPerformancePoint{
		{Date: "2024-02-27", PercentChange: 0},
		{Date: "2024-02-28", PercentChange: 0},
	}
	if len(p.Performance) != len(want) {
		t.Fatalf("performance = %v, want %v", p.Performance, want)
	}
	for i := range want {
		if p.Performance[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, p.Performance[i], want[i])
		}
	}
	if p.Summary.TickerCount != 2 || p.Summary.Total != 0 || p.Summary.Daily != 0 {
		t.Errorf("unexpected summary %+v", p.Summary)
	}

	// the live series was written through
	if !s.gateway.HasUsableHistory(ctx, "BBB") {
		t.Error("expected BBB history to be cached")
	}
}

func TestPortfolio_Empty(t *testing.T) {
	s := newTestService(t, Deps{Store: repository.NewMemoryStore()})

	p, err := s.Portfolio(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tickers == nil || p.Performance == nil {
		t.Errorf("expected empty arrays, got %+v", p)
	}
	if p.Summary.TickerCount != 0 {
		t.Errorf("unexpected summary %+v", p.Summary)
	}
}

func TestAddTicker_Duplicate(t *testing.T) {
	store := repository.NewMemoryStore()
	s := newTestService(t, Deps{Store: store})
	ctx := context.Background()

	added, err := s.AddTicker(ctx, "user-1", "aapl")
	if err != nil || !added {
		t.Fatalf("first add = %v, %v", added, err)
	}
	added, err = s.AddTicker(ctx, "user-1", "AAPL")
	if err != nil || added {
		t.Fatalf("duplicate add = %v, %v; want false, nil", added, err)
	}

	list, _ := store.ListUserTickers(ctx, "user-1")
	if len(list) != 1 {
		t.Errorf("expected one row, got %v", list)
	}
}

func TestRemoveTicker(t *testing.T) {
	s := newTestService(t, Deps{Store: repository.NewMemoryStore()})
	ctx := context.Background()

	s.AddTicker(ctx, "user-1", "MSFT")
	if removed, err := s.RemoveTicker(ctx, "user-1", "msft"); err != nil || !removed {
		t.Errorf("remove = %v, %v", removed, err)
	}
	if removed, err := s.RemoveTicker(ctx, "user-1", "MSFT"); err != nil || removed {
		t.Errorf("second remove = %v, %v; want false, nil", removed, err)
	}
}

func TestTickerOperations_Errors(t *testing.T) {
	ctx := context.Background()

	s := newTestService(t, Deps{Store: repository.NewMemoryStore()})
	if _, err := s.AddTicker(ctx, "user-1", "bad ticker!"); !errors.Is(err, ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}

	down := newTestService(t, Deps{Store: failingStore{}})
	if _, err := down.AddTicker(ctx, "user-1", "AAPL"); !errors.Is(err, errStoreDown) {
		t.Errorf("expected store error, got %v", err)
	}
	if _, err := down.Portfolio(ctx, "user-1"); !errors.Is(err, errStoreDown) {
		t.Errorf("expected store error, got %v", err)
	}

	none := newTestService(t, Deps{})
	if _, err := none.Portfolio(ctx, "user-1"); err == nil {
		t.Error("expected error without a ticker store")
	}
}
