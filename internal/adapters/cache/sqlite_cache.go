package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			cache_key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at)`,
	},
	get: `SELECT kind, payload, created_at, expires_at
		FROM result_cache
		WHERE cache_key = ? AND expires_at > ?`,
	upsert: `INSERT OR REPLACE INTO result_cache (cache_key, kind, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
	delete:  `DELETE FROM result_cache WHERE cache_key = ?`,
	cleanup: `DELETE FROM result_cache WHERE expires_at <= ?`,
}

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	*sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serialises writers
	db.SetMaxOpenConns(1)

	c, err := newSQLCache(context.Background(), db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &SQLiteCache{c}, nil
}
