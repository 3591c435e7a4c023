package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = errors.New("cache entry not found")
	// ErrExpired is returned when a cache entry has expired
	ErrExpired = errors.New("cache entry expired")
)

// MemoryCache is a bounded in-memory implementation of the CacheRepository interface.
// When full, the oldest inserted entry is evicted.
type MemoryCache struct {
	entries     map[string]*list.Element
	order       *list.List
	maxEntries  int
	mu          sync.Mutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, maxEntries int, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		maxEntries:  maxEntries,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	// Start background cleanup
	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Get retrieves a cached entry
func (c *MemoryCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	entry := elem.Value.(*core.CacheEntry)
	if c.now().After(entry.ExpiresAt) {
		c.removeElement(elem)
		return nil, ErrExpired
	}

	out := *entry
	return &out, nil
}

// Set stores a cache entry, evicting the oldest entries beyond the bound
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *entry
	if elem, ok := c.entries[entry.Key]; ok {
		c.removeElement(elem)
	}
	c.entries[entry.Key] = c.order.PushBack(&stored)

	evicted := 0
	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Front())
		evicted++
	}
	if evicted > 0 {
		c.logger.Debug("Evicted cache entries", zap.Int("evicted_count", evicted))
	}
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*core.CacheEntry).ExpiresAt) {
			c.removeElement(elem)
			expiredCount++
		}
		elem = next
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*core.CacheEntry)
	delete(c.entries, entry.Key)
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
