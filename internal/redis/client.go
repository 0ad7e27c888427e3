package redis

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"go.uber.org/fx"
)

// NewClient returns a redis client when redis backs the cache or the checkout
// lock, nil otherwise.
func NewClient(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (goredis.UniversalClient, error) {
	addr := strings.TrimSpace(cfg.Redis.Address)
	if cfg.Cache.Provider != types.CacheProviderRedis && addr == "" {
		log.Info("redis is not configured")
		return nil, nil
	}
	if addr == "" {
		return nil, ierr.NewError("redis address is required").
			WithHint("Set redis.address when cache.provider is redis").
			Mark(ierr.ErrValidation)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				return ierr.WithError(err).
					WithHint("Redis is unreachable").
					Mark(ierr.ErrUnavailable)
			}
			log.Infow("connected to redis", "address", addr, "db", cfg.Redis.DB)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}
