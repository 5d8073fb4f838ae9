package sqlite

import "database/sql"

// schema sets up the database. Swaps are stored as JSON documents with the
// fields we filter on copied into indexed columns. version backs the
// conditional update in UpdateSwap.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    images TEXT NOT NULL DEFAULT '[]',
    price REAL NOT NULL,
    carbon_saving REAL NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS swaps (
    swap_id TEXT PRIMARY KEY,
    requester_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    status TEXT NOT NULL,
    document TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    swap_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    points REAL NOT NULL,
    swaps INTEGER NOT NULL,
    carbon_saved REAL NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (swap_id, user_id),
    FOREIGN KEY (swap_id) REFERENCES swaps(swap_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id TEXT PRIMARY KEY,
    points_balance REAL NOT NULL DEFAULT 0,
    total_swaps INTEGER NOT NULL DEFAULT 0,
    carbon_saved REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_swaps_requester_id ON swaps(requester_id, created_at);
CREATE INDEX IF NOT EXISTS idx_swaps_provider_id ON swaps(provider_id, created_at);
CREATE INDEX IF NOT EXISTS idx_swaps_status ON swaps(status);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
