package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"

	"github.com/redis/go-redis/v9"
)

// Cache memoises embeddings by the hash of the exact text
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, vector []float64) error
}

// Key returns the cache key of text embedded by model. Vectors of different
// models never share a key.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a bounded in-process cache evicting the oldest entry first
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]float64
	order    []string
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string][]float64, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vector []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = vector
		return nil
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = vector
	c.order = append(c.order, key)
	return nil
}

// Len returns the number of cached embeddings
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares embeddings between processes
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// layeredCache reads through its layers in order and backfills the faster ones
type layeredCache []Cache

func (l layeredCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	var firstErr error
	for i, layer := range l {
		v, ok, err := layer.Get(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			for _, faster := range l[:i] {
				_ = faster.Set(ctx, key, v)
			}
			return v, true, nil
		}
	}
	return nil, false, firstErr
}

func (l layeredCache) Set(ctx context.Context, key string, vector []float64) error {
	var firstErr error
	for _, layer := range l {
		if err := layer.Set(ctx, key, vector); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewCache builds the cache described by cfg. It returns a nil cache when
// caching is disabled. The returned func releases the Redis connection if one was opened.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *errors.Logger) (Cache, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}

	memory := NewMemoryCache(cfg.Capacity)
	if !cfg.Redis.Enabled {
		return memory, noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, noop, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"Failed to connect to embedding cache", err).WithContext("addr", cfg.Redis.Addr)
	}
	logger.Debug("Embedding cache connected", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)

	redisCache := NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
	return layeredCache{memory, redisCache}, redisCache.Close, nil
}
