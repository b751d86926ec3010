package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// TieredCache implements L1 (memory) + L2 (Redis) caching.
// L1 is fast but lost on restart. L2 survives restarts and is shared between
// replicas. Safe for concurrent use.
type TieredCache struct {
	name            string
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	evictMu         sync.Mutex
	stop            chan struct{}
	stopOnce        sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewTieredCache creates a cache and starts its L1 cleanup goroutine.
// rdb may be nil to disable L2. Call Close to stop the cleanup loop.
func NewTieredCache(name string, rdb *redis.Client, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) *TieredCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c := &TieredCache{
		name:            name,
		rdb:             rdb,
		ttl:             ttl,
		maxEntries:      maxEntries,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}
	slog.Info("cache: initialized", slog.String("name", name), slog.Duration("ttl", ttl),
		slog.Bool("redis", rdb != nil), slog.Int("max_entries", maxEntries))
	go c.cleanupLoop()
	return c
}

// ConnectRedis parses redisURL and pings the server.
// Returns nil (L2 disabled) when the URL is empty, invalid or unreachable.
func ConnectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		rdb.Close()
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("yt:%x", hash[:12]) // 24-char hex prefix
}

func (c *TieredCache) redisKey(key string) string {
	return c.name + ":" + key
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("cache", c.name), slog.String("key", key))
			c.hits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key) // expired
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
		if err == nil {
			slog.Debug("cache: L2 hit", slog.String("cache", c.name), slog.String("key", key))
			c.hits.Add(1)
			c.storeL1(key, data)
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in both L1 and L2.
func (c *TieredCache) Set(ctx context.Context, key string, data []byte) {
	c.storeL1(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.String("cache", c.name), slog.Any("error", err))
		}
	}
}

// Delete removes key from both tiers.
func (c *TieredCache) Delete(ctx context.Context, key string) {
	c.l1.Delete(key)
	if c.rdb != nil {
		c.rdb.Del(ctx, c.redisKey(key))
	}
}

// Len returns the number of L1 entries, expired ones included.
func (c *TieredCache) Len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns the hit/miss counters.
func (c *TieredCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cleanup loop. The Redis client is owned by the caller.
func (c *TieredCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TieredCache) storeL1(key string, data []byte) {
	if _, exists := c.l1.Load(key); !exists {
		c.evictIfNeeded()
	}
	c.l1.Store(key, &cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// evictIfNeeded makes room for one more L1 entry.
// Removes expired entries first, then oldest entries if still over limit.
func (c *TieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	count := c.Len()
	if count < c.maxEntries {
		return
	}

	// Phase 1: remove expired
	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	// Phase 2: remove oldest entries until under limit.
	// Earlier expiry = older entry, since expiry = createdAt + ttl.
	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *TieredCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}

// resultCache holds derived results (video summaries) keyed by CacheKey.
var resultCache *TieredCache

// InitCache sets up the engine result cache. Call after Init().
func InitCache(rdb *redis.Client, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	if resultCache != nil {
		resultCache.Close()
	}
	resultCache = NewTieredCache("results", rdb, ttl, maxEntries, cleanupInterval)
}

// CacheLoadJSON tries to load a cached value of type T from the result cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	if resultCache == nil {
		return zero, false
	}
	data, ok := resultCache.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the result cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	if resultCache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	resultCache.Set(ctx, key, data)
}

// CacheStats returns result cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	if resultCache == nil {
		return 0, 0
	}
	return resultCache.Stats()
}
