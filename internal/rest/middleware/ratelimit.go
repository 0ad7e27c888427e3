package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles promo code checks per family, or per client
// ip for unauthenticated callers. Idle limiters are evicted after ten minutes.
func RateLimitMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.PromoValidationRPS <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limit := rate.Limit(cfg.RateLimit.PromoValidationRPS)
	burst := max(cfg.RateLimit.PromoValidationBurst, 1)
	limiters := cache.New(10*time.Minute, 20*time.Minute)

	return func(c *gin.Context) {
		key := types.GetFamilyID(c.Request.Context())
		if key == "" {
			key = c.ClientIP()
		}

		// Add only succeeds for the first caller, everyone else reads the winner
		_ = limiters.Add(key, rate.NewLimiter(limit, burst), cache.DefaultExpiration)
		value, _ := limiters.Get(key)
		limiter := value.(*rate.Limiter)
		limiters.SetDefault(key, limiter)

		if !limiter.Allow() {
			abortWithError(c, ierr.NewError("rate limit exceeded").
				WithHint("Too many promo code attempts, please try again shortly").
				WithReportableDetails(map[string]any{"retry_after_seconds": 1}).
				Mark(ierr.ErrRateLimited))
			return
		}
		c.Next()
	}
}
