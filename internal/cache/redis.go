package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisCache shares derived lookups between processes through redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
	TTL      time.Duration
	Retry    service.RetryOptions
}

// NewRedisCache connects to redis and pings it, retrying with backoff.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	err := common.WithRetry(ctx, func() error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
		return nil
	}, opts.Retry)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "harvest:"
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}, nil
}

// Get returns the value stored under key.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

// Set stores value under key with the cache TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern using SCAN.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	iter := r.rdb.Scan(ctx, 0, r.prefix+pattern, scanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", pattern, err)
	}
	return int(n), nil
}

// Health pings the redis server.
func (r *RedisCache) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the redis client.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
