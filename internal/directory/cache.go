package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/quotefault/internal/model"
)

// Cache is a string key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit, "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// REDIS CACHE:
// Shared between replicas, so a directory change is picked up by every
// instance once the entry expires.

// RedisCache stores entries in Redis under a key prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redisURL ("redis://host:port/db") and verifies
// the connection.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("directory: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("directory: connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "quotefault:directory:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// LRU CACHE:
// Per-process, bounded by entry count. Expiry is checked on read.

type lruItem struct {
	value     string
	expiresAt time.Time
}

// LRUCache is an in-process cache holding at most size entries.
type LRUCache struct {
	cache *lru.Cache[string, lruItem]
	now   func() time.Time
}

// NewLRUCache creates an LRU cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, lruItem](size)
	if err != nil {
		return nil, fmt.Errorf("directory: creating lru cache: %w", err)
	}
	return &LRUCache{cache: c, now: time.Now}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (string, bool, error) {
	item, ok := c.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	if c.now().After(item.expiresAt) {
		c.cache.Remove(key)
		return "", false, nil
	}
	return item.value, true, nil
}

func (c *LRUCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.cache.Add(key, lruItem{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

// CACHED DIRECTORY:
// Display names are cached per uid; the quotable member snapshot is cached
// as one JSON entry. Unknown uids are never cached, so a new member shows up
// on the next lookup. Cache failures are logged and fall through to the
// wrapped directory.

const quotableKey = "members:quotable"

// Cached decorates a Directory with a Cache.
type Cached struct {
	inner  Directory
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger

	// Concurrent misses on the member snapshot share one upstream call.
	mu sync.Mutex
}

var _ Directory = (*Cached)(nil)

// NewCached wraps inner. Entries live for ttl.
func NewCached(inner Directory, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "directory.Cached")),
	}
}

func nameKey(uid string) string { return "cn:" + uid }

func (c *Cached) Resolve(ctx context.Context, uids []string) (map[string]string, error) {
	uids = dedupe(uids)
	names := make(map[string]string, len(uids))

	var misses []string
	for _, uid := range uids {
		cn, ok, err := c.cache.Get(ctx, nameKey(uid))
		if err != nil {
			c.logger.WarnContext(ctx, "directory cache read failed", slog.Any("error", err))
		}
		if ok {
			names[uid] = cn
			continue
		}
		misses = append(misses, uid)
	}
	if len(misses) == 0 {
		return names, nil
	}

	fresh, err := c.inner.Resolve(ctx, misses)
	if err != nil {
		return nil, err
	}
	for uid, cn := range fresh {
		names[uid] = cn
		if err := c.cache.Set(ctx, nameKey(uid), cn, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "directory cache write failed", slog.Any("error", err))
		}
	}
	return names, nil
}

func (c *Cached) QuotableMembers(ctx context.Context) ([]model.User, error) {
	if users, ok := c.cachedMembers(ctx); ok {
		return users, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have filled the entry while we waited.
	if users, ok := c.cachedMembers(ctx); ok {
		return users, nil
	}

	users, err := c.inner.QuotableMembers(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(users)
	if err == nil {
		err = c.cache.Set(ctx, quotableKey, string(raw), c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "directory cache write failed", slog.Any("error", err))
	}
	return users, nil
}

func (c *Cached) cachedMembers(ctx context.Context) ([]model.User, bool) {
	raw, ok, err := c.cache.Get(ctx, quotableKey)
	if err != nil {
		c.logger.WarnContext(ctx, "directory cache read failed", slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var users []model.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt directory cache entry", slog.Any("error", err))
		return nil, false
	}
	return users, true
}
