package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"go.uber.org/zap"
)

// MemoryCache is an in-process LRU cache with per-item TTL. Session
// summaries are small (thumbnails dominate) so a few hundred entries
// is a reasonable ceiling.
type MemoryCache struct {
	items   map[string]*cacheItem
	mutex   sync.RWMutex
	maxSize int
	ttl     time.Duration
	logger  *zap.Logger
	cleanup *time.Ticker
	stopCh  chan struct{}
}

type cacheItem struct {
	Summary     *models.SessionSummary
	ExpiresAt   time.Time
	LastUsed    time.Time
	AccessCount int64
}

func NewMemoryCache(maxSize int, ttl time.Duration, logger *zap.Logger) *MemoryCache {
	cache := &MemoryCache{
		items:   make(map[string]*cacheItem),
		maxSize: maxSize,
		ttl:     ttl,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	cache.cleanup = time.NewTicker(1 * time.Minute)
	go cache.cleanupExpired()

	return cache
}

func (c *MemoryCache) Set(ctx context.Context, key string, summary *models.SessionSummary) error {
	return c.SetWithTTL(ctx, key, summary, c.ttl)
}

func (c *MemoryCache) SetWithTTL(ctx context.Context, key string, summary *models.SessionSummary, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.items) >= c.maxSize {
		c.evictLRU()
	}

	c.items[key] = &cacheItem{
		Summary:     summary,
		ExpiresAt:   time.Now().Add(ttl),
		LastUsed:    time.Now(),
		AccessCount: 1,
	}

	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*models.SessionSummary, error) {
	c.mutex.RLock()
	item, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, ErrCacheMiss
	}

	if time.Now().After(item.ExpiresAt) {
		c.mutex.Lock()
		delete(c.items, key)
		c.mutex.Unlock()
		return nil, ErrCacheMiss
	}

	c.mutex.Lock()
	item.LastUsed = time.Now()
	item.AccessCount++
	c.mutex.Unlock()

	return item.Summary, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return false, nil
	}

	if time.Now().After(item.ExpiresAt) {
		return false, nil
	}

	return true, nil
}

func (c *MemoryCache) GetStats(ctx context.Context) (*CacheStats, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	expiredCount := 0
	totalAccessCount := int64(0)

	for _, item := range c.items {
		if now.After(item.ExpiresAt) {
			expiredCount++
		}
		totalAccessCount += item.AccessCount
	}

	stats := &CacheStats{
		Connected: true,
		Info: fmt.Sprintf("items=%d,expired=%d,access_count=%d,max_size=%d",
			len(c.items), expiredCount, totalAccessCount, c.maxSize),
	}

	return stats, nil
}

func (c *MemoryCache) Close() error {
	if c.cleanup != nil {
		c.cleanup.Stop()
	}
	close(c.stopCh)
	return nil
}

func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.LastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.LastUsed
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-c.cleanup.C:
			c.mutex.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.ExpiresAt) {
					delete(c.items, key)
				}
			}
			c.mutex.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
