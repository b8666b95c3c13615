package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrIntegrity marks bar batches that violate the strictly
	// increasing date invariant. The offending instrument's sync is
	// aborted; others are unaffected.
	ErrIntegrity = errors.New("store: duplicate or out-of-order date")

	// ErrNotFound marks absent rows where absence is an expected state.
	ErrNotFound = errors.New("store: not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
    symbol    TEXT NOT NULL,
    date      TEXT NOT NULL,
    open      REAL,
    high      REAL,
    low       REAL,
    close     REAL,
    pre_close REAL,
    change    REAL,
    pct_chg   REAL,
    vol       REAL,
    amount    REAL,
    PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_bars_date ON bars (date, symbol);

CREATE TABLE IF NOT EXISTS sync_status (
    symbol      TEXT PRIMARY KEY,
    last_synced TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_signals (
    feature TEXT NOT NULL,
    symbol  TEXT NOT NULL,
    date    TEXT NOT NULL,
    metrics TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (feature, symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_feature_signals_date ON feature_signals (feature, date);

CREATE TABLE IF NOT EXISTS feature_metrics (
    feature TEXT NOT NULL,
    symbol  TEXT NOT NULL,
    date    TEXT NOT NULL,
    name    TEXT NOT NULL,
    value   REAL,
    PRIMARY KEY (feature, symbol, date, name)
);
`

// Store is the embedded durable tier: daily bars, sync state and
// feature signals in a single SQLite file. It is the sole source of
// truth; everything above it must survive a hot-cache wipe.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// initializes the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite writes are serialized; a single connection avoids
	// SQLITE_BUSY under the sync worker pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
