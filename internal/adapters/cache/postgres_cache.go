package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			cache_key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload BYTEA NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at)`,
	},
	get: `SELECT kind, payload, created_at, expires_at
		FROM result_cache
		WHERE cache_key = $1 AND expires_at > $2`,
	upsert: `INSERT INTO result_cache (cache_key, kind, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE SET
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
	delete:  `DELETE FROM result_cache WHERE cache_key = $1`,
	cleanup: `DELETE FROM result_cache WHERE expires_at <= $1`,
}

// PostgresCache is a PostgreSQL implementation of the CacheRepository interface
type PostgresCache struct {
	*sqlCache
}

// NewPostgresCache creates a new PostgreSQL cache using the pgx driver
func NewPostgresCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*PostgresCache, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	c, err := newSQLCache(context.Background(), db, postgresDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &PostgresCache{c}, nil
}
