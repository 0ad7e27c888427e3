package middleware

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/types"
)

// SentryMiddleware attaches a per request hub and tags it with the request id.
// Family ids are added by the auth middleware once they are known.
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// tagSentryScope labels the request hub with the caller identity.
// It is a no-op when sentry is disabled.
func tagSentryScope(c *gin.Context) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		return
	}

	ctx := c.Request.Context()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", types.GetRequestID(ctx))
		if familyID := types.GetFamilyID(ctx); familyID != "" {
			scope.SetTag("family_id", familyID)
		}
		if role := types.GetRole(ctx); role != "" {
			scope.SetTag("role", role)
		}
	})
}
