package dto

import (
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/types"
)

type SubscriptionResponse struct {
	*subscription.Subscription
	Tier  *tier.Tier                `json:"tier,omitempty"`
	Trial *subscription.TrialStatus `json:"trial"`
}

type ListSubscriptionHistoryResponse = types.ListResponse[*subscription.History]

type TrialStatusResponse struct {
	*subscription.TrialStatus
}
