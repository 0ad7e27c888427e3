package cache

import (
	"github.com/redis/go-redis/v9"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
)

// Initialize picks the cache implementation configured for the deployment
func Initialize(cfg *config.Configuration, client redis.UniversalClient, log *logger.Logger) Cache {
	if cfg.Cache.Provider == types.CacheProviderRedis && client != nil {
		log.Infow("initializing cache", "provider", "redis", "enabled", cfg.Cache.Enabled)
		return NewRedisCache(client, cfg.Cache.Enabled, log)
	}

	log.Infow("initializing cache", "provider", "memory", "enabled", cfg.Cache.Enabled)
	return NewInMemoryCache(cfg)
}
