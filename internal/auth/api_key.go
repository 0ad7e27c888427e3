package auth

import (
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyVerifier checks admin api keys against a bcrypt hash from config
type AdminKeyVerifier struct {
	hash []byte
}

func NewAdminKeyVerifier(cfg *config.Configuration) *AdminKeyVerifier {
	return &AdminKeyVerifier{hash: []byte(cfg.Auth.AdminAPIKeyHash)}
}

func (v *AdminKeyVerifier) Verify(key string) error {
	if len(v.hash) == 0 {
		return ierr.NewError("admin api key is not configured").
			WithHint("Admin access is disabled").
			Mark(ierr.ErrPermissionDenied)
	}
	if key == "" {
		return ierr.NewError("missing admin api key").
			WithHint("Admin api key is required").
			Mark(ierr.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ierr.NewError("invalid admin api key").
			WithHint("Invalid admin api key").
			Mark(ierr.ErrUnauthorized)
	}
	return nil
}

// HashAPIKey produces the value stored in auth.admin_api_key_hash
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to hash api key").
			Mark(ierr.ErrSystem)
	}
	return string(hash), nil
}
