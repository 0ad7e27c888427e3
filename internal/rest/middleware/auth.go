package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/auth"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
)

// AuthenticateMiddleware verifies the Supabase bearer token and puts the user
// and family ids on the request context. With auth disabled the family comes
// from the X-Family-ID header, which is only meant for local development.
func AuthenticateMiddleware(cfg *config.Configuration, provider auth.Provider, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Auth.Disabled {
			ctx := c.Request.Context()
			ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
			ctx = context.WithValue(ctx, types.CtxFamilyID, c.GetHeader(types.HeaderFamilyID))
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		authHeader := c.GetHeader(types.HeaderAuthorization)
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWithError(c, ierr.NewError("missing bearer token").
				WithHint("Unauthorized").
				Mark(ierr.ErrUnauthorized))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := provider.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, types.CtxUserID, claims.UserID)
		ctx = context.WithValue(ctx, types.CtxFamilyID, claims.FamilyID)
		ctx = context.WithValue(ctx, types.CtxJWT, tokenString)
		ctx = context.WithValue(ctx, types.CtxRole, types.RoleMember)
		c.Request = c.Request.WithContext(ctx)
		tagSentryScope(c)
		c.Next()
	}
}

// AdminAuthMiddleware guards admin routes with the bcrypt hashed api key
func AdminAuthMiddleware(verifier *auth.AdminKeyVerifier, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verifier.Verify(c.GetHeader(types.HeaderAPIKey)); err != nil {
			logger.Warnw("admin api key rejected", "path", c.FullPath(), "client_ip", c.ClientIP())
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, types.CtxUserID, types.SystemUserID)
		ctx = context.WithValue(ctx, types.CtxRole, types.RoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		tagSentryScope(c)
		c.Next()
	}
}

// abortWithError stops the chain and lets ErrorHandler render err
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
