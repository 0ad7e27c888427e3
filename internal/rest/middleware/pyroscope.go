package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/pyroscope"
)

// PyroscopeMiddleware labels profiles with the matched route so checkout and
// promo validation hot paths can be told apart
func PyroscopeMiddleware(svc *pyroscope.Service) gin.HandlerFunc {
	if !svc.IsEnabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := map[string]string{
			"method":   c.Request.Method,
			"endpoint": route,
			"provider": c.Param("provider"),
		}
		svc.TagWrapper(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
