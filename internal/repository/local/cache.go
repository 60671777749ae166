// Package local is an in-process link cache used when Redis is disabled.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/metrics"

	"github.com/allegro/bigcache"
)

// Cache stores serialized link metadata in a bigcache instance.
// Entries expire after the life window given to NewCache.
type Cache struct {
	cache *bigcache.BigCache
}

// NewCache creates a bigcache-backed link cache
func NewCache(ttl time.Duration) (*Cache, error) {
	config := bigcache.DefaultConfig(ttl)
	config.Shards = 256
	config.CleanWindow = ttl / 2
	config.MaxEntrySize = 1024
	config.HardMaxCacheSize = 64 // MB

	bc, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &Cache{cache: bc}, nil
}

// GetLink returns nil, nil on a miss
func (c *Cache) GetLink(ctx context.Context, code string) (*domain.Link, error) {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("local", "get").Observe(time.Since(start).Seconds())
	}()

	data, err := c.cache.Get(code)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local cache get error: %w", err)
	}

	metrics.RecordCacheHit()

	var link domain.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached link: %w", err)
	}
	return &link, nil
}

func (c *Cache) SetLink(ctx context.Context, link *domain.Link) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("local", "set").Observe(time.Since(start).Seconds())
	}()

	stripped := link.Clone()
	stripped.Analytics = domain.Analytics{}

	data, err := json.Marshal(stripped)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}
	if err := c.cache.Set(link.ShortCode, data); err != nil {
		return fmt.Errorf("local cache set error: %w", err)
	}
	return nil
}

func (c *Cache) DeleteLink(ctx context.Context, code string) error {
	err := c.cache.Delete(code)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("local cache delete error: %w", err)
	}
	return nil
}
