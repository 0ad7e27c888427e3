package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
)

// supabaseAuth verifies access tokens issued by Supabase Auth
type supabaseAuth struct {
	secret string
}

func NewSupabaseAuth(cfg *config.Configuration) Provider {
	return &supabaseAuth{secret: cfg.Supabase.JWTSecret}
}

func (s *supabaseAuth) ValidateToken(_ context.Context, token string) (*Claims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrUnauthorized)
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrUnauthorized)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrUnauthorized)
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, ierr.NewError("token missing user ID").
			WithHint("Token missing user ID").
			Mark(ierr.ErrUnauthorized)
	}

	email, _ := claims["email"].(string)

	return &Claims{
		UserID:   userID,
		FamilyID: familyIDFrom(claims),
		Email:    email,
	}, nil
}

// familyIDFrom reads family_id from app_metadata, falling back to user_metadata
func familyIDFrom(claims jwt.MapClaims) string {
	for _, key := range []string{"app_metadata", "user_metadata"} {
		metadata, ok := claims[key].(map[string]interface{})
		if !ok {
			continue
		}
		if familyID, ok := metadata["family_id"].(string); ok && familyID != "" {
			return familyID
		}
	}
	return ""
}
