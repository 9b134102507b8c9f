package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"invest-desk/models"
	"invest-desk/observability"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded cache store used when no Postgres URL is configured
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	observability.Info("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_cache (
			symbol           TEXT PRIMARY KEY,
			price_series     TEXT NOT NULL DEFAULT '[]',
			forecast_results TEXT,
			metadata         TEXT,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_price_history (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			price  REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS user_tickers (
			user_id      TEXT NOT NULL,
			stock_ticker TEXT NOT NULL,
			created_at   INTEGER NOT NULL,
			PRIMARY KEY (user_id, stock_ticker)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		observability.Warn("failed to close sqlite store", "error", err)
	}
}

// Health checks that the database is reachable
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteRowColumns = `symbol, price_series, forecast_results, metadata, updated_at`

// GetCachedSeries returns the cache row for a symbol
func (s *SQLiteStore) GetCachedSeries(ctx context.Context, symbol string) (*models.CachedSeriesRow, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_cache")

	row, err := scanSQLiteRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRowColumns+` FROM stock_cache WHERE symbol = ?`,
		models.NormalizeSymbol(symbol)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to query stock cache: %w", err)
	}
	return row, nil
}

// GetCachedSeriesBatch returns the cache rows for every known symbol in the set
func (s *SQLiteStore) GetCachedSeriesBatch(ctx context.Context, symbols []string) ([]models.CachedSeriesRow, error) {
	if len(symbols) == 0 {
		return []models.CachedSeriesRow{}, nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_cache")

	placeholders := make([]string, len(symbols))
	args := make([]any, len(symbols))
	for i, sym := range symbols {
		placeholders[i] = "?"
		args[i] = models.NormalizeSymbol(sym)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRowColumns+` FROM stock_cache WHERE symbol IN (`+strings.Join(placeholders, ",")+`) ORDER BY symbol`,
		args...)
	if err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to query stock cache batch: %w", err)
	}
	defer rows.Close()

	result := []models.CachedSeriesRow{}
	for rows.Next() {
		row, err := scanSQLiteRow(rows)
		if err != nil {
			metrics.RecordDBError("select", "stock_cache")
			return nil, fmt.Errorf("failed to scan stock cache row: %w", err)
		}
		result = append(result, *row)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "stock_cache")
		return nil, fmt.Errorf("failed to iterate stock cache rows: %w", err)
	}
	return result, nil
}

// UpsertHistory records new dated prices for a symbol. Dates already stored are left alone.
func (s *SQLiteStore) UpsertHistory(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	symbol = models.NormalizeSymbol(symbol)
	if len(points) == 0 {
		return 0, nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_price_history")

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT price_series FROM stock_cache WHERE symbol = ?`, symbol).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, fmt.Errorf("failed to read price series: %w", err)
	}

	merged, added := mergeSeries(existing.String, points)
	if len(added) == 0 {
		return 0, nil
	}

	for _, p := range added {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO stock_price_history (symbol, date, price) VALUES (?, ?, ?)`,
			symbol, p.Date, p.Price); err != nil {
			metrics.RecordDBError("upsert", "stock_price_history")
			return 0, fmt.Errorf("failed to insert price history: %w", err)
		}
	}

	encoded, err := encodeSeries(merged)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_cache (symbol, price_series, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET price_series = excluded.price_series, updated_at = excluded.updated_at
	`, symbol, string(encoded), time.Now().Unix()); err != nil {
		metrics.RecordDBError("upsert", "stock_cache")
		return 0, fmt.Errorf("failed to update price series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordDBError("upsert", "stock_price_history")
		return 0, fmt.Errorf("failed to commit history upsert: %w", err)
	}
	return len(added), nil
}

// SaveForecast replaces the stored forecast for a symbol
func (s *SQLiteStore) SaveForecast(ctx context.Context, run *models.ForecastRun) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_cache")

	encoded, err := encodeSeries(run.Points)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := models.NormalizeSymbol(run.Symbol)
	err = s.mergeMetadataLocked(ctx, symbol, forecastMetadata(run), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE stock_cache SET forecast_results = ? WHERE symbol = ?`, string(encoded), symbol)
		return err
	})
	if err != nil {
		metrics.RecordDBError("upsert", "stock_cache")
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// MergeMetadata shallow-merges keys into a symbol's metadata
func (s *SQLiteStore) MergeMetadata(ctx context.Context, symbol string, meta map[string]any) error {
	if len(meta) == 0 {
		return nil
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stock_cache")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mergeMetadataLocked(ctx, models.NormalizeSymbol(symbol), meta, nil); err != nil {
		metrics.RecordDBError("upsert", "stock_cache")
		return fmt.Errorf("failed to merge metadata: %w", err)
	}
	return nil
}

// mergeMetadataLocked creates the row if needed, merges metadata and runs extra in the same transaction
func (s *SQLiteStore) mergeMetadataLocked(ctx context.Context, symbol string, meta map[string]any, extra func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO stock_cache (symbol, price_series, updated_at) VALUES (?, '[]', ?)`,
		symbol, now); err != nil {
		return err
	}

	var raw sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT metadata FROM stock_cache WHERE symbol = ?`, symbol).Scan(&raw); err != nil {
		return err
	}
	current, err := decodeMetadata([]byte(raw.String))
	if err != nil {
		// Unreadable metadata is replaced rather than blocking writes
		current = nil
	}
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range meta {
		current[k] = v
	}
	encoded, err := encodeMetadata(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_cache SET metadata = ?, updated_at = ? WHERE symbol = ?`,
		string(encoded), now, symbol); err != nil {
		return err
	}
	if extra != nil {
		if err := extra(tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListUserTickers returns a user's tracked tickers in insertion order
func (s *SQLiteStore) ListUserTickers(ctx context.Context, userID string) ([]models.UserTicker, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "user_tickers")

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, stock_ticker, created_at FROM user_tickers
		WHERE user_id = ? ORDER BY created_at, rowid
	`, userID)
	if err != nil {
		metrics.RecordDBError("select", "user_tickers")
		return nil, fmt.Errorf("failed to query user tickers: %w", err)
	}
	defer rows.Close()

	tickers := []models.UserTicker{}
	for rows.Next() {
		var (
			ut      models.UserTicker
			created int64
		)
		if err := rows.Scan(&ut.UserID, &ut.StockTicker, &created); err != nil {
			metrics.RecordDBError("select", "user_tickers")
			return nil, fmt.Errorf("failed to scan user ticker: %w", err)
		}
		ut.CreatedAt = time.Unix(0, created).UTC()
		tickers = append(tickers, ut)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "user_tickers")
		return nil, fmt.Errorf("failed to iterate user tickers: %w", err)
	}
	return tickers, nil
}

// AddUserTicker tracks a ticker for a user
func (s *SQLiteStore) AddUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "user_tickers")

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_tickers (user_id, stock_ticker, created_at) VALUES (?, ?, ?)`,
		userID, models.NormalizeSymbol(ticker), time.Now().UnixNano())
	if err != nil {
		metrics.RecordDBError("insert", "user_tickers")
		return false, fmt.Errorf("failed to add user ticker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveUserTicker stops tracking a ticker for a user
func (s *SQLiteStore) RemoveUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "user_tickers")

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_tickers WHERE user_id = ? AND stock_ticker = ?`,
		userID, models.NormalizeSymbol(ticker))
	if err != nil {
		metrics.RecordDBError("delete", "user_tickers")
		return false, fmt.Errorf("failed to remove user ticker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// HistoryCount returns the number of stored history rows for a symbol
func (s *SQLiteStore) HistoryCount(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_price_history WHERE symbol = ?`, models.NormalizeSymbol(symbol)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(row rowScanner) (*models.CachedSeriesRow, error) {
	var (
		out      models.CachedSeriesRow
		prices   sql.NullString
		forecast sql.NullString
		meta     sql.NullString
		updated  int64
	)
	if err := row.Scan(&out.Symbol, &prices, &forecast, &meta, &updated); err != nil {
		return nil, err
	}
	out.PriceSeries = json.RawMessage(prices.String)
	if forecast.Valid && forecast.String != "" {
		out.ForecastResults = json.RawMessage(forecast.String)
	}
	decoded, err := decodeMetadata([]byte(meta.String))
	if err != nil {
		return nil, err
	}
	out.Metadata = decoded
	out.UpdatedAt = time.Unix(updated, 0).UTC()
	return &out, nil
}
