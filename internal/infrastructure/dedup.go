package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// NewRedisClient parses REDIS_URL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisDeduper remembers update keys in Redis so replicas share one view
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: "botrelay:update:"}
}

// Seen reports whether key was already recorded, recording it otherwise
func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.prefix+key, 1, dedupTTL).Result()
	ObserveUpstream("redis", err)
	if err != nil {
		return false, err
	}
	return !created, nil
}

// MemoryDeduper is the single-process fallback
type MemoryDeduper struct {
	cache *cache.Cache
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{cache: cache.New(dedupTTL, time.Hour)}
}

func (d *MemoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	// Add fails when the key is already present
	if err := d.cache.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return true, nil
	}
	return false, nil
}
