package db

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS deals (
    deal_id TEXT NOT NULL,
    instance_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    volume REAL NOT NULL,
    price REAL NOT NULL,
    profit REAL DEFAULT 0,
    reason TEXT DEFAULT '',
    executed_at DATETIME NOT NULL,
    PRIMARY KEY(deal_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_deals_instance ON deals(instance_id, executed_at);

CREATE TABLE IF NOT EXISTS daily_summaries (
    instance_id TEXT NOT NULL,
    day TEXT NOT NULL,
    bars_evaluated INTEGER DEFAULT 0,
    signals_found INTEGER DEFAULT 0,
    trades_sent INTEGER DEFAULT 0,
    blocks TEXT DEFAULT '{}',
    equity REAL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(instance_id, day)
);

CREATE TABLE IF NOT EXISTS instance_state (
    instance_id TEXT PRIMARY KEY,
    risk_state TEXT NOT NULL,
    dedup_state TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Migrate applies the schema. Statements are idempotent so it runs on every
// startup.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
