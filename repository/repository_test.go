package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"invest-desk/models"
	"invest-desk/series"
)

// getTestDB returns a repository connected to the test database.
// If DATABASE_URL is not set, the test is skipped.
func getTestDB(t *testing.T) *Repository {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	cleanupTestRows(t, repo)
	return repo
}

// cleanupTestRows removes all rows written by these tests
func cleanupTestRows(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()
	repo.pool.Exec(ctx, "DELETE FROM stock_price_history WHERE symbol LIKE 'TEST%'")
	repo.pool.Exec(ctx, "DELETE FROM stock_cache WHERE symbol LIKE 'TEST%'")
	repo.pool.Exec(ctx, "DELETE FROM user_tickers WHERE user_id LIKE 'test-%'")
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	return store
}

// forEachStore runs fn against every store implementation available in this environment
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		store := newSQLiteStore(t)
		defer store.Close()
		fn(t, store)
	})
	t.Run("postgres", func(t *testing.T) {
		repo := getTestDB(t)
		defer repo.Close()
		defer cleanupTestRows(t, repo)
		fn(t, repo)
	})
}

func points(pairs ...any) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.PricePoint{Date: pairs[i].(string), Price: pairs[i+1].(float64)})
	}
	return out
}

// =============================================================================
// Price cache tests
// =============================================================================

func TestStore_GetCachedSeries_Missing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		row, err := store.GetCachedSeries(context.Background(), "TESTNONE")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if row != nil {
			t.Errorf("expected nil row, got %+v", row)
		}
	})
}

func TestStore_UpsertHistory_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		p := points("2024-01-02", 100.0)

		added, err := store.UpsertHistory(ctx, "testa", p)
		if err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}
		if added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}

		added, err = store.UpsertHistory(ctx, "TESTA", p)
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if added != 0 {
			t.Errorf("expected 0 added on repeat, got %d", added)
		}

		row, err := store.GetCachedSeries(ctx, "TESTA")
		if err != nil || row == nil {
			t.Fatalf("expected row, got %v, %v", row, err)
		}
		got := series.Normalize(row.PriceSeries)
		if len(got) != 1 || got[0] != p[0] {
			t.Errorf("expected single point %v, got %v", p, got)
		}
	})
}

func TestStore_UpsertHistory_ExistingDatesUntouched(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if _, err := store.UpsertHistory(ctx, "TESTB", points("2024-01-02", 100.0, "2024-01-03", 101.0)); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		added, err := store.UpsertHistory(ctx, "TESTB", points("2024-01-03", 999.0, "2024-01-01", 99.0))
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}

		row, _ := store.GetCachedSeries(ctx, "TESTB")
		got := series.Normalize(row.PriceSeries)
		want := points("2024-01-01", 99.0, "2024-01-02", 100.0, "2024-01-03", 101.0)
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("point %d: expected %v, got %v", i, want[i], got[i])
			}
		}
	})
}

func TestStore_SaveForecast_ReplacesWholesale(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first := models.NewForecastRun("TESTC", points("2024-02-01", 10.0, "2024-02-02", 11.0))
		if err := store.SaveForecast(ctx, first); err != nil {
			t.Fatalf("save forecast failed: %v", err)
		}
		second := models.NewForecastRun("TESTC", points("2024-03-01", 12.0))
		if err := store.SaveForecast(ctx, second); err != nil {
			t.Fatalf("save forecast failed: %v", err)
		}

		row, err := store.GetCachedSeries(ctx, "TESTC")
		if err != nil || row == nil {
			t.Fatalf("expected row, got %v, %v", row, err)
		}
		if !row.HasForecast() {
			t.Fatal("expected forecast to be stored")
		}
		got := series.Normalize(row.ForecastResults)
		if len(got) != 1 || got[0].Date != "2024-03-01" {
			t.Errorf("expected only the latest forecast, got %v", got)
		}
		if row.Metadata["forecastRunId"] != second.ID.String() {
			t.Errorf("expected run id %s in metadata, got %v", second.ID, row.Metadata["forecastRunId"])
		}
		if len(series.Normalize(row.PriceSeries)) != 0 {
			t.Error("saving a forecast must not invent price history")
		}
	})
}

func TestStore_MergeMetadata(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if err := store.MergeMetadata(ctx, "TESTD", map[string]any{"sector": "Tech", "longName": "Old"}); err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if err := store.MergeMetadata(ctx, "TESTD", map[string]any{"longName": "New"}); err != nil {
			t.Fatalf("merge failed: %v", err)
		}

		row, _ := store.GetCachedSeries(ctx, "TESTD")
		if row.Metadata["sector"] != "Tech" {
			t.Errorf("expected sector to survive merge, got %v", row.Metadata["sector"])
		}
		if row.Metadata["longName"] != "New" {
			t.Errorf("expected longName to be replaced, got %v", row.Metadata["longName"])
		}
	})
}

func TestStore_GetCachedSeriesBatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, sym := range []string{"TESTE", "TESTF"} {
			if _, err := store.UpsertHistory(ctx, sym, points("2024-01-02", 1.0)); err != nil {
				t.Fatalf("upsert failed: %v", err)
			}
		}

		rows, err := store.GetCachedSeriesBatch(ctx, []string{"teste", "TESTF", "TESTMISSING"})
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].Symbol != "TESTE" || rows[1].Symbol != "TESTF" {
			t.Errorf("unexpected symbols %s, %s", rows[0].Symbol, rows[1].Symbol)
		}

		empty, err := store.GetCachedSeriesBatch(ctx, nil)
		if err != nil || empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil result, got %v, %v", empty, err)
		}
	})
}

// =============================================================================
// User ticker tests
// =============================================================================

func TestStore_UserTickers(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		user := "test-user-1"

		added, err := store.AddUserTicker(ctx, user, "aapl")
		if err != nil || !added {
			t.Fatalf("expected first add to succeed, got %v, %v", added, err)
		}
		added, err = store.AddUserTicker(ctx, user, "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added {
			t.Error("expected duplicate add to report false")
		}
		if _, err := store.AddUserTicker(ctx, user, "MSFT"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		list, err := store.ListUserTickers(ctx, user)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 2 || list[0].StockTicker != "AAPL" || list[1].StockTicker != "MSFT" {
			t.Errorf("unexpected tickers %+v", list)
		}

		other, err := store.ListUserTickers(ctx, "test-user-2")
		if err != nil || other == nil || len(other) != 0 {
			t.Errorf("expected empty list for other user, got %v, %v", other, err)
		}

		removed, err := store.RemoveUserTicker(ctx, user, "aapl")
		if err != nil || !removed {
			t.Errorf("expected remove to succeed, got %v, %v", removed, err)
		}
		removed, err = store.RemoveUserTicker(ctx, user, "AAPL")
		if err != nil || removed {
			t.Errorf("expected second remove to report false, got %v, %v", removed, err)
		}
	})
}

func TestHistoryCount_DoubleUpsertLeavesOneRow(t *testing.T) {
	ctx := context.Background()
	p := points("2024-01-02", 100.0)

	mem := NewMemoryStore()
	sqlite := newSQLiteStore(t)
	defer sqlite.Close()

	for name, store := range map[string]interface {
		Store
		HistoryCount(context.Context, string) (int, error)
	}{"memory": mem, "sqlite": sqlite} {
		for i := 0; i < 2; i++ {
			if _, err := store.UpsertHistory(ctx, "TESTG", p); err != nil {
				t.Fatalf("%s: upsert failed: %v", name, err)
			}
		}
		n, err := store.HistoryCount(ctx, "TESTG")
		if err != nil {
			t.Fatalf("%s: count failed: %v", name, err)
		}
		if n != 1 {
			t.Errorf("%s: expected 1 history row, got %d", name, n)
		}
	}
}

func TestMemoryStore_PutRowKeepsRawShape(t *testing.T) {
	store := NewMemoryStore()
	raw := json.RawMessage(`{"data":[{"Date":"2024-01-02","Close":"100.5"}]}`)
	store.PutRow(models.CachedSeriesRow{Symbol: "aapl", PriceSeries: raw})

	row, err := store.GetCachedSeries(context.Background(), "AAPL")
	if err != nil || row == nil {
		t.Fatalf("expected row, got %v, %v", row, err)
	}
	if string(row.PriceSeries) != string(raw) {
		t.Errorf("expected raw payload preserved, got %s", row.PriceSeries)
	}

	// Upserting merges into the foreign shape and rewrites canonical JSON
	added, err := store.UpsertHistory(context.Background(), "AAPL", points("2024-01-02", 1.0, "2024-01-03", 101.0))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if added != 1 {
		t.Errorf("expected 1 added, got %d", added)
	}
	row, _ = store.GetCachedSeries(context.Background(), "AAPL")
	got := series.Normalize(row.PriceSeries)
	if len(got) != 2 || got[0].Price != 100.5 {
		t.Errorf("expected existing price kept, got %v", got)
	}
}

func TestMergeSeries(t *testing.T) {
	merged, added := mergeSeries(nil, points("2024-01-03", 3.0, "2024-01-01", 1.0, "2024-01-01", 9.0))
	if len(added) != 2 {
		t.Errorf("expected 2 added, got %v", added)
	}
	if len(merged) != 2 || merged[0].Date != "2024-01-01" || merged[0].Price != 1.0 {
		t.Errorf("unexpected merge %v", merged)
	}
}
