package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			cache_key VARCHAR(191) PRIMARY KEY,
			kind VARCHAR(64) NOT NULL,
			payload LONGBLOB NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_expires_at (expires_at)
		)`,
	},
	get: `SELECT kind, payload, created_at, expires_at
		FROM result_cache
		WHERE cache_key = ? AND expires_at > ?`,
	upsert: `INSERT INTO result_cache (cache_key, kind, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			kind = VALUES(kind),
			payload = VALUES(payload),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)`,
	delete:  `DELETE FROM result_cache WHERE cache_key = ?`,
	cleanup: `DELETE FROM result_cache WHERE expires_at <= ?`,
}

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	c, err := newSQLCache(context.Background(), db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &MySQLCache{c}, nil
}
