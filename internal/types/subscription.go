package types

import (
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusExpired,
		SubscriptionStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Please provide a valid subscription status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether only a new payment can bring the subscription back
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusExpired || s == SubscriptionStatusCancelled
}

// IsLive reports whether the family currently has access
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusTrialing || s == SubscriptionStatusActive
}

// SubscriptionAction is recorded in the subscription history
type SubscriptionAction string

const (
	SubscriptionActionCreated    SubscriptionAction = "created"
	SubscriptionActionUpgraded   SubscriptionAction = "upgraded"
	SubscriptionActionDowngraded SubscriptionAction = "downgraded"
	SubscriptionActionRenewed    SubscriptionAction = "renewed"
	SubscriptionActionCancelled  SubscriptionAction = "cancelled"
	SubscriptionActionExpired    SubscriptionAction = "expired"
)

func (a SubscriptionAction) String() string {
	return string(a)
}
