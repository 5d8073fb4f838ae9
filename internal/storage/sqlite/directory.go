package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rewear/rewear/internal/models"
)

// UpsertUser inserts a user profile or refreshes its username.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.UserProfile) error {
	query := `
		INSERT INTO users (id, username, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by their ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `
		SELECT id, username, created_at
		FROM users
		WHERE id = ?
	`

	user := &models.UserProfile{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// UpsertItem inserts a catalog item or refreshes its listing details.
func (s *SQLiteStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	images, err := json.Marshal(nonNil(item.Images))
	if err != nil {
		return fmt.Errorf("failed to encode item images: %w", err)
	}

	query := `
		INSERT INTO items (id, owner_id, title, images, price, carbon_saving, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			images = excluded.images,
			price = excluded.price,
			carbon_saving = excluded.carbon_saving
	`

	_, err = s.db.ExecContext(ctx, query,
		item.ID,
		item.OwnerID,
		item.Title,
		string(images),
		item.Price,
		item.CarbonSavingEstimate,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	return nil
}

// GetItem retrieves a catalog item by its ID.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.CatalogItem, error) {
	query := `
		SELECT id, owner_id, title, images, price, carbon_saving, created_at
		FROM items
		WHERE id = ?
	`

	item := &models.CatalogItem{}
	var images string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&images,
		&item.Price,
		&item.CarbonSavingEstimate,
		&item.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by ID: %w", err)
	}

	if err := json.Unmarshal([]byte(images), &item.Images); err != nil {
		return nil, fmt.Errorf("failed to decode item images: %w", err)
	}

	return item, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
