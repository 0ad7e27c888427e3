package dto

import (
	"time"

	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/domain/subscription"
)

// DashboardStatsResponse is the admin overview
type DashboardStatsResponse struct {
	Subscriptions []*subscription.TierCount `json:"subscriptions"`
	// ActiveByTier counts trialing and active subscriptions per tier
	ActiveByTier map[string]int     `json:"active_by_tier"`
	Promo        *promo.Stats       `json:"promo"`
	Revenue      []*payment.Revenue `json:"revenue"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
