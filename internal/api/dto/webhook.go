package dto

import (
	"time"

	"github.com/rumahku/billing/internal/types"
)

// PaymentEventPayload is delivered with payment.* webhook events
type PaymentEventPayload struct {
	OrderID       string                `json:"order_id"`
	FamilyID      string                `json:"family_id"`
	TierID        string                `json:"tier_id"`
	BillingPeriod types.BillingPeriod   `json:"billing_period"`
	Provider      types.PaymentProvider `json:"provider"`
	Status        types.PaymentStatus   `json:"status"`
	Amount        int64                 `json:"amount"`
	Currency      string                `json:"currency"`
	PromoCode     *string               `json:"promo_code,omitempty"`
	FailureReason *string               `json:"failure_reason,omitempty"`
}

// SubscriptionEventPayload is delivered with subscription.* webhook events
type SubscriptionEventPayload struct {
	SubscriptionID string                   `json:"subscription_id"`
	FamilyID       string                   `json:"family_id"`
	TierID         string                   `json:"tier_id"`
	FromTier       *string                  `json:"from_tier,omitempty"`
	Action         types.SubscriptionAction `json:"action"`
	Status         types.SubscriptionStatus `json:"status"`
	ExpiresAt      *time.Time               `json:"expires_at,omitempty"`
}
