package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rewear/rewear/internal/models"
)

// UpsertUser inserts a user profile or refreshes its username.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`, user.ID, user.Username, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	user := &models.UserProfile{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpsertItem inserts a catalog item or refreshes its listing details.
func (s *PostgresStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	images := item.Images
	if images == nil {
		images = []string{}
	}
	encoded, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to encode item images: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO items (id, owner_id, title, images, price, carbon_saving, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			images = EXCLUDED.images,
			price = EXCLUDED.price,
			carbon_saving = EXCLUDED.carbon_saving
	`, item.ID, item.OwnerID, item.Title, encoded, item.Price, item.CarbonSavingEstimate, item.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: owner %s of item %s", models.ErrNotFound, item.OwnerID, item.ID)
		}
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// GetItem retrieves a catalog item by ID.
func (s *PostgresStore) GetItem(ctx context.Context, id string) (*models.CatalogItem, error) {
	item := &models.CatalogItem{}
	var images []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, images, price, carbon_saving, created_at
		FROM items WHERE id = $1
	`, id).Scan(&item.ID, &item.OwnerID, &item.Title, &images, &item.Price, &item.CarbonSavingEstimate, &item.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: item %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if err := json.Unmarshal(images, &item.Images); err != nil {
		return nil, fmt.Errorf("failed to decode item images: %w", err)
	}
	return item, nil
}

// GetUserStats returns the running totals for a user.
func (s *PostgresStore) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT points_balance, total_swaps, carbon_saved, updated_at
		FROM user_stats WHERE user_id = $1
	`, userID).Scan(&stats.PointsBalance, &stats.TotalSwaps, &stats.CarbonSaved, &stats.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

// ListLedgerEntries returns the credits recorded for a swap.
func (s *PostgresStore) ListLedgerEntries(ctx context.Context, swapID string) ([]models.LedgerCredit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT swap_id, user_id, points, swaps, carbon_saved
		FROM ledger_entries WHERE swap_id = $1 ORDER BY user_id
	`, swapID)
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
