package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/teethanalyzer/internal/adapters/cache"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository creates a cache repository based on the configuration
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	cc := f.cfg.GetCache()
	logger := f.logger.With(zap.String("cache", cc.Type))

	switch cc.Type {
	case "memory":
		return cache.NewMemoryCache(logger, cc.MaxEntries, cc.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cache.NewSQLiteCache(cc.SQLitePath, logger, cc.CleanupFrequency)
	case "mysql":
		return cache.NewMySQLCache(cc.MySQLDSN, logger, cc.CleanupFrequency)
	case "postgres":
		return cache.NewPostgresCache(cc.PostgresDSN, logger, cc.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cc.Type)
	}
}

// GetCacheTTL returns the configured cache TTL
func (f *CacheFactory) GetCacheTTL() time.Duration {
	return f.cfg.GetCache().TTL
}

// IsCacheEnabled returns whether caching is enabled
func (f *CacheFactory) IsCacheEnabled() bool {
	return f.cfg.GetCache().Enabled
}
