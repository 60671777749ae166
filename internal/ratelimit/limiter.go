// Package ratelimit implements a per-client request budget shared by every
// server instance through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow bumps the counter of a key and starts its window on the first
// hit. Returns {count, window_ms_left}.
var fixedWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

const keyPrefix = "ratelimit:"

// RateLimiter allows maxRequests per key within a fixed window.
// The increment and the window start happen in one script, so concurrent
// requests hitting different servers share one exact count.
type RateLimiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewFixedWindowLimiter creates a limiter.
// NewFixedWindowLimiter(client, 100, time.Minute) allows 100 requests per minute per key.
func NewFixedWindowLimiter(client *redis.Client, maxRequests int, window time.Duration) *RateLimiter {
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return &RateLimiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow counts one request for key and reports whether it fits the budget,
// how many requests are left and when the window resets
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	res, err := fixedWindow.Run(ctx, rl.client, []string{keyPrefix + key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit result: %v", res)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	remaining := max(int64(rl.maxRequests)-count, 0)

	return count <= int64(rl.maxRequests), int(remaining), rl.now().Add(ttl), nil
}

// Reset forgets the current window of key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, keyPrefix+key).Err()
}

// MaxRequests returns the per-window budget
func (rl *RateLimiter) MaxRequests() int {
	return rl.maxRequests
}
