package promo

import (
	"context"
	"time"

	"github.com/rumahku/billing/internal/types"
)

// Repository is the promo code store.
// Redeem is the only way current_uses changes and must be atomic: it checks
// the usage cap and increments in one step, so concurrent redemptions can
// never exceed MaxUses.
type Repository interface {
	Create(ctx context.Context, p *PromoCode) error
	Get(ctx context.Context, id string) (*PromoCode, error)
	// GetByCode looks a code up by its normalized form
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	List(ctx context.Context, filter *types.PromoCodeFilter) ([]*PromoCode, error)
	Count(ctx context.Context, filter *types.PromoCodeFilter) (int, error)
	Update(ctx context.Context, p *PromoCode) error
	Delete(ctx context.Context, id string) error

	// Redeem increments current_uses of r.PromoCodeID if the cap allows it and
	// stores r. It returns a PROMO_USAGE_EXCEEDED rejection when the cap is reached.
	Redeem(ctx context.Context, r *Redemption) (*PromoCode, error)
	ListRedemptions(ctx context.Context, promoCodeID string, filter *types.QueryFilter) ([]*Redemption, error)
	GetStats(ctx context.Context, now time.Time) (*Stats, error)
}
