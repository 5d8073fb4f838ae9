// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlitedriver "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rewear/rewear/internal/models"
	"github.com/rewear/rewear/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas are applied per connection by the driver.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSwap persists a new swap document.
func (s *SQLiteStore) CreateSwap(ctx context.Context, sw *models.Swap) error {
	sw.Version = 1
	doc, err := json.Marshal(sw)
	if err != nil {
		sw.Version = 0
		return fmt.Errorf("failed to encode swap: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO swaps (swap_id, requester_id, provider_id, status, document, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sw.SwapID, sw.Requester.UserID, sw.Provider.UserID, string(sw.Status), string(doc),
		sw.Version, sw.CreatedAt.UnixMilli(), sw.UpdatedAt.UnixMilli(),
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

// GetSwap retrieves a swap by ID.
func (s *SQLiteStore) GetSwap(ctx context.Context, swapID string) (*models.Swap, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT document, version FROM swaps WHERE swap_id = ?",
		swapID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: swap %s", models.ErrNotFound, swapID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap: %w", err)
	}

	return decodeSwap(doc, version)
}

// ListSwapsByUser returns the swaps userID takes part in, newest first.
func (s *SQLiteStore) ListSwapsByUser(ctx context.Context, userID string, status models.SwapStatus, limit int) ([]*models.Swap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, version FROM swaps
		 WHERE (requester_id = ? OR provider_id = ?) AND (? = '' OR status = ?)
		 ORDER BY created_at DESC, swap_id DESC
		 LIMIT ?`,
		userID, userID, string(status), string(status), storage.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list swaps: %w", err)
	}
	defer rows.Close()

	swaps := []*models.Swap{}
	for rows.Next() {
		var doc string
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
func (s *SQLiteStore) UpdateSwap(ctx context.Context, sw *models.Swap, credits []models.LedgerCredit) error {
	next := *sw
	next.Version = sw.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode swap: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE swaps SET status = ?, document = ?, version = ?, updated_at = ?
		 WHERE swap_id = ? AND version = ?`,
		string(next.Status), string(doc), next.Version, next.UpdatedAt.UnixMilli(),
		sw.SwapID, sw.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update swap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM swaps WHERE swap_id = ?", sw.SwapID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: swap %s", models.ErrNotFound, sw.SwapID)
		}
		if err != nil {
			return fmt.Errorf("failed to check swap existence: %w", err)
		}
		return fmt.Errorf("%w: swap %s at version %d", models.ErrVersionConflict, sw.SwapID, sw.Version)
	}

	for _, c := range credits {
		if err := applyCredit(ctx, tx, c, next.UpdatedAt.Unix()); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	sw.Version = next.Version
	return nil
}

func decodeSwap(doc string, version int64) (*models.Swap, error) {
	sw := &models.Swap{}
	if err := json.Unmarshal([]byte(doc), sw); err != nil {
		return nil, fmt.Errorf("failed to decode swap: %w", err)
	}
	// The column is authoritative.
	sw.Version = version
	return sw, nil
}

// isDuplicateKeyError checks if err is a primary key or unique violation.
func isDuplicateKeyError(err error) bool {
	var serr *sqlitedriver.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
