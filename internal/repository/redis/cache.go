package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Cache keeps link metadata in Redis, keyed by short code.
// This implements the CACHE-ASIDE PATTERN:
// 1. Check cache first
// 2. If miss, ask the store
// 3. Store in cache for next time
//
// Analytics are never cached; they only live in the store.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a new Redis cache
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Key naming convention: "link:{shortCode}"
func linkKey(code string) string {
	return "link:" + code
}

// GetLink retrieves a link from cache
// Returns nil, nil on a miss
func (c *Cache) GetLink(ctx context.Context, code string) (*domain.Link, error) {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("redis", "get").Observe(time.Since(start).Seconds())
	}()

	data, err := c.client.Get(ctx, linkKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Cache miss - not an error, just not found
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	metrics.RecordCacheHit()

	var link domain.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached link: %w", err)
	}

	return &link, nil
}

// SetLink stores the link metadata under its short code
func (c *Cache) SetLink(ctx context.Context, link *domain.Link) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("redis", "set").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(withoutAnalytics(link))
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	// TTL ensures cache doesn't grow indefinitely and stale data is removed
	if err := c.client.Set(ctx, linkKey(link.ShortCode), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// DeleteLink removes a link from cache
// Used when a link is updated or deleted
func (c *Cache) DeleteLink(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, linkKey(code)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

// Clear removes every cached link and reports how many keys were deleted.
// Keys are deleted page by page so a large cache never builds one huge DEL.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	const page = 500

	var (
		deleted int
		batch   = make([]string, 0, page)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis delete error: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, linkKey("*"), page).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == page {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan error: %w", err)
	}

	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func withoutAnalytics(link *domain.Link) *domain.Link {
	out := link.Clone()
	out.Analytics = domain.Analytics{}
	return out
}

// InitRedis creates a new Redis client
func InitRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool settings
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
