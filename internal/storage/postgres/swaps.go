package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rewear/rewear/internal/models"
	"github.com/rewear/rewear/internal/storage"
)

// CreateSwap inserts a new swap document at version 1.
func (s *PostgresStore) CreateSwap(ctx context.Context, sw *models.Swap) error {
	sw.Version = 1
	doc, err := json.Marshal(sw)
	if err != nil {
		sw.Version = 0
		return fmt.Errorf("failed to encode swap: %w", err)
	}

	query := `
		INSERT INTO swaps (swap_id, requester_id, provider_id, status, document, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.pool.Exec(ctx, query,
		sw.SwapID,
		sw.Requester.UserID,
		sw.Provider.UserID,
		string(sw.Status),
		doc,
		sw.Version,
		sw.CreatedAt,
		sw.UpdatedAt,
	)
	if err != nil {
		sw.Version = 0
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: swap %s already exists", models.ErrConflict, sw.SwapID)
		}
		return fmt.Errorf("failed to insert swap: %w", err)
	}
	return nil
}

// GetSwap loads a swap document by ID.
func (s *PostgresStore) GetSwap(ctx context.Context, swapID string) (*models.Swap, error) {
	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT document, version FROM swaps WHERE swap_id = $1`,
		swapID,
	).Scan(&doc, &version)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: swap %s", models.ErrNotFound, swapID)
		}
		return nil, fmt.Errorf("failed to get swap: %w", err)
	}
	return decodeSwap(doc, version)
}

// ListSwapsByUser returns the swaps userID takes part in, newest first.
func (s *PostgresStore) ListSwapsByUser(ctx context.Context, userID string, status models.SwapStatus, limit int) ([]*models.Swap, error) {
	query := `
		SELECT document, version FROM swaps
		WHERE (requester_id = $1 OR provider_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, swap_id DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, userID, string(status), storage.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list swaps: %w", err)
	}
	defer rows.Close()

	swaps := []*models.Swap{}
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		sw, err := decodeSwap(doc, version)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate swaps: %w", err)
	}
	return swaps, nil
}

// UpdateSwap saves sw with a version check and applies credits atomically.
func (s *PostgresStore) UpdateSwap(ctx context.Context, sw *models.Swap, credits []models.LedgerCredit) error {
	next := *sw
	next.Version = sw.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode swap: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE swaps SET status = $1, document = $2, version = $3, updated_at = $4
		WHERE swap_id = $5 AND version = $6
	`, string(next.Status), doc, next.Version, next.UpdatedAt, sw.SwapID, sw.Version)
	if err != nil {
		return fmt.Errorf("failed to update swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM swaps WHERE swap_id = $1)`, sw.SwapID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check swap existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: swap %s", models.ErrNotFound, sw.SwapID)
		}
		return fmt.Errorf("%w: swap %s at version %d", models.ErrVersionConflict, sw.SwapID, sw.Version)
	}

	for _, c := range credits {
		if err := applyCredit(ctx, tx, c, next.UpdatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	sw.Version = next.Version
	return nil
}

func decodeSwap(doc []byte, version int64) (*models.Swap, error) {
	sw := &models.Swap{}
	if err := json.Unmarshal(doc, sw); err != nil {
		return nil, fmt.Errorf("failed to decode swap: %w", err)
	}
	sw.Version = version
	return sw, nil
}

// applyCredit records one settlement credit. The (swap_id, user_id) key makes
// a repeated credit a no-op.
func applyCredit(ctx context.Context, tx pgx.Tx, c models.LedgerCredit, now time.Time) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (swap_id, user_id, points, swaps, carbon_saved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (swap_id, user_id) DO NOTHING
	`, c.SwapID, c.UserID, c.Points, c.Swaps, c.CarbonSaved, now)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_stats (user_id, points_balance, total_swaps, carbon_saved, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			points_balance = user_stats.points_balance + EXCLUDED.points_balance,
			total_swaps = user_stats.total_swaps + EXCLUDED.total_swaps,
			carbon_saved = user_stats.carbon_saved + EXCLUDED.carbon_saved,
			updated_at = EXCLUDED.updated_at
	`, c.UserID, c.Points, c.Swaps, c.CarbonSaved, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}
