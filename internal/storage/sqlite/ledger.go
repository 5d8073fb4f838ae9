package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rewear/rewear/internal/models"
)

// applyCredit records one settlement credit and folds it into the user's
// totals. The (swap_id, user_id) key makes a repeated credit a no-op.
func applyCredit(ctx context.Context, tx *sql.Tx, c models.LedgerCredit, now int64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (swap_id, user_id, points, swaps, carbon_saved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (swap_id, user_id) DO NOTHING`,
		c.SwapID, c.UserID, c.Points, c.Swaps, c.CarbonSaved, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ledger insert: %w", err)
	}
	if n == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, points_balance, total_swaps, carbon_saved, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     points_balance = points_balance + excluded.points_balance,
		     total_swaps = total_swaps + excluded.total_swaps,
		     carbon_saved = carbon_saved + excluded.carbon_saved,
		     updated_at = excluded.updated_at`,
		c.UserID, c.Points, c.Swaps, c.CarbonSaved, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}

	return nil
}

// GetUserStats retrieves the running totals for a user.
func (s *SQLiteStore) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT points_balance, total_swaps, carbon_saved, updated_at
		 FROM user_stats WHERE user_id = ?`,
		userID,
	).Scan(&stats.PointsBalance, &stats.TotalSwaps, &stats.CarbonSaved, &stats.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return stats, nil
}

// ListLedgerEntries returns the credits recorded for a swap.
func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, swapID string) ([]models.LedgerCredit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT swap_id, user_id, points, swaps, carbon_saved
		 FROM ledger_entries WHERE swap_id = ? ORDER BY user_id`,
		swapID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerCredit
	for rows.Next() {
		var c models.LedgerCredit
		if err := rows.Scan(&c.SwapID, &c.UserID, &c.Points, &c.Swaps, &c.CarbonSaved); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}
