package repository

import (
	"context"
	"fmt"

	"invest-desk/models"
	"invest-desk/observability"
)

// ListUserTickers returns a user's tracked tickers in insertion order
func (r *Repository) ListUserTickers(ctx context.Context, userID string) ([]models.UserTicker, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "user_tickers")

	rows, err := r.db.Query(ctx, `
		SELECT user_id, stock_ticker, created_at
		FROM user_tickers
		WHERE user_id = $1
		ORDER BY created_at, stock_ticker
	`, userID)
	if err != nil {
		metrics.RecordDBError("select", "user_tickers")
		return nil, fmt.Errorf("failed to query user tickers: %w", err)
	}
	defer rows.Close()

	tickers := []models.UserTicker{}
	for rows.Next() {
		var ut models.UserTicker
		if err := rows.Scan(&ut.UserID, &ut.StockTicker, &ut.CreatedAt); err != nil {
			metrics.RecordDBError("select", "user_tickers")
			return nil, fmt.Errorf("failed to scan user ticker: %w", err)
		}
		tickers = append(tickers, ut)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "user_tickers")
		return nil, fmt.Errorf("failed to iterate user tickers: %w", err)
	}

	return tickers, nil
}

// AddUserTicker tracks a ticker for a user
func (r *Repository) AddUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "user_tickers")

	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_tickers (user_id, stock_ticker, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, stock_ticker) DO NOTHING
	`, userID, models.NormalizeSymbol(ticker))
	if err != nil {
		metrics.RecordDBError("insert", "user_tickers")
		return false, fmt.Errorf("failed to add user ticker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveUserTicker stops tracking a ticker for a user
func (r *Repository) RemoveUserTicker(ctx context.Context, userID, ticker string) (bool, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "user_tickers")

	tag, err := r.db.Exec(ctx, `
		DELETE FROM user_tickers WHERE user_id = $1 AND stock_ticker = $2
	`, userID, models.NormalizeSymbol(ticker))
	if err != nil {
		metrics.RecordDBError("delete", "user_tickers")
		return false, fmt.Errorf("failed to remove user ticker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
