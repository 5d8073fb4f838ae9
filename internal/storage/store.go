// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/rewear/rewear/internal/models"
)

// DefaultListLimit caps ListSwapsByUser when no limit or a larger one is given.
const DefaultListLimit = 50

// SwapStore persists swap documents with optimistic concurrency.
type SwapStore interface {
	// CreateSwap persists a new swap and sets sw.Version to 1.
	CreateSwap(ctx context.Context, sw *models.Swap) error

	// GetSwap retrieves a swap by its ID.
	// Returns models.ErrNotFound if the swap does not exist.
	GetSwap(ctx context.Context, swapID string) (*models.Swap, error)

	// ListSwapsByUser returns swaps where userID is a party, newest first.
	// An empty status matches every status.
	ListSwapsByUser(ctx context.Context, userID string, status models.SwapStatus, limit int) ([]*models.Swap, error)

	// UpdateSwap saves sw if the stored version still equals sw.Version, and
	// applies credits in the same transaction. On success sw.Version advances.
	// Returns models.ErrVersionConflict if another writer got there first and
	// models.ErrNotFound if the swap does not exist.
	UpdateSwap(ctx context.Context, sw *models.Swap, credits []models.LedgerCredit) error
}

// Ledger is the gamification read model fed by swap settlements.
type Ledger interface {
	// GetUserStats returns the running totals for userID. Users with no
	// settled swaps get zero totals.
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)

	// ListLedgerEntries returns the credits recorded for swapID.
	ListLedgerEntries(ctx context.Context, swapID string) ([]models.LedgerCredit, error)
}

// Directory resolves user profiles and catalog items.
type Directory interface {
	UpsertUser(ctx context.Context, user *models.UserProfile) error

	// GetUser returns models.ErrNotFound for unknown users.
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)

	UpsertItem(ctx context.Context, item *models.CatalogItem) error

	// GetItem returns models.ErrNotFound for unknown items.
	GetItem(ctx context.Context, itemID string) (*models.CatalogItem, error)
}

// Store defines the interface for all storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	SwapStore
	Ledger
	Directory

	// Close releases any resources held by the store.
	Close() error
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
