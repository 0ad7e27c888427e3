package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rumahku/billing/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisCache implements Cache on top of redis so that several API replicas
// share catalog and promo lookups. Values are stored JSON encoded.
type RedisCache struct {
	client  redis.UniversalClient
	logger  *logger.Logger
	enabled bool
}

func NewRedisCache(client redis.UniversalClient, enabled bool, logger *logger.Logger) *RedisCache {
	return &RedisCache{
		client:  client,
		logger:  logger,
		enabled: enabled,
	}
}

// Get returns the raw JSON bytes stored under key
func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	span := StartCacheSpan(ctx, "redis", "get", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		SetSpanSuccess(span)
		return nil, false
	}
	if err != nil {
		SetSpanError(span, err)
		c.logger.Warnw("redis cache get failed", "key", key, "error", err)
		return nil, false
	}

	SetSpanSuccess(span)
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}

	span := StartCacheSpan(ctx, "redis", "set", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	data, err := json.Marshal(value)
	if err != nil {
		SetSpanError(span, err)
		c.logger.Warnw("redis cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		SetSpanError(span, err)
		c.logger.Warnw("redis cache set failed", "key", key, "error", err)
		return
	}
	SetSpanSuccess(span)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnw("redis cache delete failed", "key", key, "error", err)
	}
}

// DeleteByPrefix walks matching keys with SCAN, never KEYS
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) {
	if !c.enabled {
		return
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warnw("redis cache scan failed", "prefix", prefix, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warnw("redis cache prefix delete failed", "prefix", prefix, "error", err)
	}
}

func (c *RedisCache) Flush(ctx context.Context) {
	if !c.enabled {
		return
	}
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warnw("redis cache flush failed", "error", err)
	}
}
