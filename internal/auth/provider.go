package auth

import (
	"context"

	"github.com/rumahku/billing/internal/config"
)

// Claims is what the billing API needs from an access token
type Claims struct {
	UserID   string
	FamilyID string
	Email    string
}

// Provider verifies end user access tokens
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	return NewSupabaseAuth(cfg)
}
