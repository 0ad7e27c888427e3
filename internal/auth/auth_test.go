package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestSupabaseValidateToken(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Supabase.JWTSecret = "super-secret"
	provider := NewSupabaseAuth(cfg)

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, "super-secret", jwt.MapClaims{
			"sub":          "user-1",
			"email":        "sari@example.com",
			"exp":          time.Now().Add(time.Hour).Unix(),
			"app_metadata": map[string]interface{}{"family_id": "fam-1"},
		})

		claims, err := provider.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "fam-1", claims.FamilyID)
		assert.Equal(t, "sari@example.com", claims.Email)
	})

	t.Run("family from user metadata", func(t *testing.T) {
		token := sign(t, "super-secret", jwt.MapClaims{
			"sub":           "user-1",
			"exp":           time.Now().Add(time.Hour).Unix(),
			"user_metadata": map[string]interface{}{"family_id": "fam-2"},
		})

		claims, err := provider.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "fam-2", claims.FamilyID)
	})

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: sign(t, "other", jwt.MapClaims{"sub": "user-1"})},
		{name: "expired", token: sign(t, "super-secret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{name: "missing subject", token: sign(t, "super-secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
		{name: "garbage", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.ValidateToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, ierr.Is(err, ierr.ErrUnauthorized))
		})
	}
}

func TestAdminKeyVerifier(t *testing.T) {
	hash, err := HashAPIKey("admin-key")
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Auth.AdminAPIKeyHash = hash
	verifier := NewAdminKeyVerifier(cfg)

	assert.NoError(t, verifier.Verify("admin-key"))
	assert.True(t, ierr.Is(verifier.Verify("wrong"), ierr.ErrUnauthorized))
	assert.True(t, ierr.Is(verifier.Verify(""), ierr.ErrUnauthorized))

	assert.True(t, ierr.Is(NewAdminKeyVerifier(config.GetDefaultConfig()).Verify("admin-key"), ierr.ErrPermissionDenied))
}
