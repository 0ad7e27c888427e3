package subscription

import (
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// Subscription is the single plan a family is on
type Subscription struct {
	ID                 string                   `json:"id" db:"id"`
	FamilyID           string                   `json:"family_id" db:"family_id"`
	TierID             string                   `json:"tier_id" db:"tier_id"`
	BillingPeriod      types.BillingPeriod      `json:"billing_period" db:"billing_period"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	TrialEndsAt        *time.Time               `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	CurrentPeriodStart time.Time                `json:"current_period_start" db:"current_period_start"`
	ExpiresAt          *time.Time               `json:"expires_at,omitempty" db:"expires_at"`
	CancelledAt        *time.Time               `json:"cancelled_at,omitempty" db:"cancelled_at"`
	LastOrderID        *string                  `json:"last_order_id,omitempty" db:"last_order_id"`
	types.BaseModel
}

// EndsAt is the instant access lapses, trial end for trialing subscriptions
func (s *Subscription) EndsAt() *time.Time {
	if s.SubscriptionStatus == types.SubscriptionStatusTrialing {
		return s.TrialEndsAt
	}
	return s.ExpiresAt
}

// IsDue reports whether a live subscription has run past its end at now
func (s *Subscription) IsDue(now time.Time) bool {
	end := s.EndsAt()
	return s.SubscriptionStatus.IsLive() && end != nil && !now.Before(*end)
}

var transitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusTrialing: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusCancelled,
	},
	types.SubscriptionStatusActive: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusCancelled,
	},
	types.SubscriptionStatusExpired: {
		types.SubscriptionStatusActive,
	},
	types.SubscriptionStatusCancelled: {
		types.SubscriptionStatusActive,
	},
}

// CanTransition reports whether from -> to is allowed.
// active -> active is a renewal, terminal states only leave through a payment.
func CanTransition(from, to types.SubscriptionStatus) bool {
	return lo.Contains(transitions[from], to)
}

// TransitionTo moves the subscription to status or returns an
// invalid operation error
func (s *Subscription) TransitionTo(status types.SubscriptionStatus) error {
	if !CanTransition(s.SubscriptionStatus, status) {
		return ierr.NewError("invalid subscription transition").
			WithHintf("Subscription cannot move from %s to %s", s.SubscriptionStatus, status).
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"from":            s.SubscriptionStatus,
				"to":              status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	s.SubscriptionStatus = status
	return nil
}

// History is an append only record of lifecycle changes
type History struct {
	ID             string                   `json:"id" db:"id"`
	SubscriptionID string                   `json:"subscription_id" db:"subscription_id"`
	FamilyID       string                   `json:"family_id" db:"family_id"`
	Action         types.SubscriptionAction `json:"action" db:"action"`
	FromTier       *string                  `json:"from_tier,omitempty" db:"from_tier"`
	ToTier         string                   `json:"to_tier" db:"to_tier"`
	Amount         int64                    `json:"amount" db:"amount"`
	OrderID        *string                  `json:"order_id,omitempty" db:"order_id"`
	CreatedAt      time.Time                `json:"created_at" db:"created_at"`
	CreatedBy      string                   `json:"created_by" db:"created_by"`
}

// TierCount is one row of the dashboard breakdown
type TierCount struct {
	TierID             string                   `json:"tier_id" db:"tier_id"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	Count              int                      `json:"count" db:"count"`
}

// TrialStatus drives the trial banner
type TrialStatus struct {
	IsTrialing  bool       `json:"is_trialing"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	DaysLeft    int        `json:"days_left"`
	Urgent      bool       `json:"urgent"`
}

// NewTrialStatus computes days left rounding partial days up
func NewTrialStatus(s *Subscription, now time.Time, urgentDays int) *TrialStatus {
	if s == nil || s.SubscriptionStatus != types.SubscriptionStatusTrialing || s.TrialEndsAt == nil {
		return &TrialStatus{}
	}

	remaining := s.TrialEndsAt.Sub(now)
	days := 0
	if remaining > 0 {
		days = int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	}

	return &TrialStatus{
		IsTrialing:  true,
		TrialEndsAt: s.TrialEndsAt,
		DaysLeft:    days,
		Urgent:      days <= urgentDays,
	}
}
