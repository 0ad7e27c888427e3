package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/auth"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	claims *auth.Claims
	err    error
}

func (s stubProvider) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNoopLogger()))
	r.GET("/", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   types.GetUserID(c.Request.Context()),
			"family_id": types.GetFamilyID(c.Request.Context()),
		})
	})...)
	return r
}

func TestAuthenticateMiddleware(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log := logger.NewNoopLogger()

	t.Run("valid token", func(t *testing.T) {
		provider := stubProvider{claims: &auth.Claims{UserID: "user-1", FamilyID: "fam-1"}}
		r := newRouter(AuthenticateMiddleware(cfg, provider, log))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(types.HeaderAuthorization, "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"user-1","family_id":"fam-1"}`, w.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		r := newRouter(AuthenticateMiddleware(cfg, stubProvider{}, log))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("invalid token", func(t *testing.T) {
		provider := stubProvider{err: ierr.NewError("bad").WithHint("Token parse error").Mark(ierr.ErrUnauthorized)}
		r := newRouter(AuthenticateMiddleware(cfg, provider, log))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(types.HeaderAuthorization, "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token parse error")
	})

	t.Run("auth disabled reads family header", func(t *testing.T) {
		disabled := config.GetDefaultConfig()
		disabled.Auth.Disabled = true
		r := newRouter(AuthenticateMiddleware(disabled, stubProvider{}, log))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(types.HeaderFamilyID, "fam-9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"family_id":"fam-9"`)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := auth.HashAPIKey("admin-key")
	require.NoError(t, err)
	cfg := config.GetDefaultConfig()
	cfg.Auth.AdminAPIKeyHash = hash

	r := newRouter(AdminAuthMiddleware(auth.NewAdminKeyVerifier(cfg), logger.NewNoopLogger()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderAPIKey, "admin-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), types.SystemUserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderAPIKey, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.PromoValidationRPS = 0.001
	cfg.RateLimit.PromoValidationBurst = 2

	r := newRouter(RateLimitMiddleware(cfg))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(types.HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(types.HeaderRequestID))
}

func TestErrorHandler(t *testing.T) {
	r := newRouter(RequestIDMiddleware, func(c *gin.Context) {
		_ = c.Error(ierr.NewError("tier gold missing from catalog").
			WithHint("Tier not found").
			Mark(ierr.ErrNotFound))
		c.Abort()
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{
		"success": false,
		"error": {"code": "not_found", "message": "Tier not found", "request_id": "req-42"}
	}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "gold")
}
