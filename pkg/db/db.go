package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database owns the SQLite handle backing the deal journal and the persisted
// per-instance state.
type Database struct {
	DB *sql.DB
}

// New opens the journal file at path, creating its parent directory first
// when needed.
func New(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps the runners and
	// the API readers from tripping over each other's locks.
	db.SetMaxOpenConns(1)

	return &Database{DB: db}, nil
}

// Close releases the underlying handle. Safe on a nil receiver.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
