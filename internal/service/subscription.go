package service

import (
	"context"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/domain/tier"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// ActivateSubscriptionParams describes a paid period to apply
type ActivateSubscriptionParams struct {
	FamilyID      string
	TierID        string
	BillingPeriod types.BillingPeriod
	OrderID       string
	Amount        int64
	// PaidAt defaults to now
	PaidAt time.Time
}

// SubscriptionService drives the family subscription lifecycle
type SubscriptionService interface {
	StartTrial(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error)
	// Activate applies a successful payment: creates, renews, upgrades or downgrades
	Activate(ctx context.Context, params ActivateSubscriptionParams) (*subscription.Subscription, error)
	Cancel(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error)
	// ExpireDue moves live subscriptions past their end to expired
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	GetSubscription(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error)
	ListHistory(ctx context.Context, familyID string, filter *types.QueryFilter) (*dto.ListSubscriptionHistoryResponse, error)
	GetTrialStatus(ctx context.Context, familyID string) (*dto.TrialStatusResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) StartTrial(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error) {
	if err := requireFamily(familyID); err != nil {
		return nil, err
	}

	if s.Config.Billing.TrialDays <= 0 || s.Config.Billing.TrialTier == "" {
		return nil, ierr.NewError("trials are disabled").
			WithHint("Free trials are not available").
			Mark(ierr.ErrInvalidOperation)
	}

	_, err := s.SubRepo.GetByFamily(ctx, familyID)
	if err == nil {
		return nil, ierr.NewError("family already has a subscription").
			WithHint("A trial can only be started once per family").
			WithReportableDetails(map[string]any{
				"family_id": familyID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	trialTier, err := s.TierRepo.Get(ctx, s.Config.Billing.TrialTier)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		FamilyID:           familyID,
		TierID:             trialTier.ID,
		BillingPeriod:      types.BillingPeriodMonthly,
		SubscriptionStatus: types.SubscriptionStatusTrialing,
		TrialEndsAt:        lo.ToPtr(now.AddDate(0, 0, s.Config.Billing.TrialDays)),
		CurrentPeriodStart: now,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	history := s.newHistory(ctx, sub, types.SubscriptionActionCreated, nil, 0, nil)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return err
		}
		return s.SubRepo.CreateHistory(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("trial started",
		"family_id", familyID,
		"subscription_id", sub.ID,
		"tier_id", sub.TierID,
		"trial_ends_at", sub.TrialEndsAt,
	)
	s.publish(ctx, sub, history)

	return s.toResponse(sub, trialTier, now), nil
}

func (s *subscriptionService) Activate(ctx context.Context, params ActivateSubscriptionParams) (*subscription.Subscription, error) {
	if err := requireFamily(params.FamilyID); err != nil {
		return nil, err
	}
	if err := params.BillingPeriod.Validate(); err != nil {
		return nil, err
	}

	newTier, err := s.TierRepo.Get(ctx, params.TierID)
	if err != nil {
		return nil, err
	}

	now := params.PaidAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	orderID := lo.EmptyableToPtr(params.OrderID)

	var (
		sub     *subscription.Subscription
		history *subscription.History
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.SubRepo.GetByFamily(ctx, params.FamilyID)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}

		if existing == nil {
			sub = &subscription.Subscription{
				ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
				FamilyID:           params.FamilyID,
				TierID:             newTier.ID,
				BillingPeriod:      params.BillingPeriod,
				SubscriptionStatus: types.SubscriptionStatusActive,
				CurrentPeriodStart: now,
				ExpiresAt:          lo.ToPtr(params.BillingPeriod.NextPeriodEnd(now)),
				LastOrderID:        orderID,
				BaseModel:          types.GetDefaultBaseModel(ctx),
			}
			history = s.newHistory(ctx, sub, types.SubscriptionActionCreated, nil, params.Amount, orderID)
			if err := s.SubRepo.Create(ctx, sub); err != nil {
				return err
			}
			return s.SubRepo.CreateHistory(ctx, history)
		}

		sub = existing
		fromTier := sub.TierID
		action, err := s.changeAction(ctx, sub, newTier)
		if err != nil {
			return err
		}

		// paid time left on the same tier carries over
		start := now
		if action == types.SubscriptionActionRenewed &&
			sub.SubscriptionStatus == types.SubscriptionStatusActive &&
			sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
			start = *sub.ExpiresAt
		}

		if err := sub.TransitionTo(types.SubscriptionStatusActive); err != nil {
			return err
		}
		sub.TierID = newTier.ID
		sub.BillingPeriod = params.BillingPeriod
		sub.CurrentPeriodStart = start
		sub.ExpiresAt = lo.ToPtr(params.BillingPeriod.NextPeriodEnd(start))
		sub.TrialEndsAt = nil
		sub.CancelledAt = nil
		sub.LastOrderID = orderID
		sub.Touch(ctx, time.Now())

		history = s.newHistory(ctx, sub, action, &fromTier, params.Amount, orderID)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.SubRepo.CreateHistory(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription activated",
		"family_id", sub.FamilyID,
		"subscription_id", sub.ID,
		"tier_id", sub.TierID,
		"action", history.Action,
		"expires_at", sub.ExpiresAt,
		"order_id", params.OrderID,
	)
	s.publish(ctx, sub, history)

	return sub, nil
}

// changeAction classifies a payment against the current subscription by
// comparing tier prices
func (s *subscriptionService) changeAction(ctx context.Context, sub *subscription.Subscription, newTier *tier.Tier) (types.SubscriptionAction, error) {
	if sub.TierID == newTier.ID {
		return types.SubscriptionActionRenewed, nil
	}

	current, err := s.TierRepo.Get(ctx, sub.TierID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// the old tier left the catalog, treat the move as an upgrade
			return types.SubscriptionActionUpgraded, nil
		}
		return "", err
	}

	if newTier.MonthlyPrice < current.MonthlyPrice {
		return types.SubscriptionActionDowngraded, nil
	}
	return types.SubscriptionActionUpgraded, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.GetByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := sub.TransitionTo(types.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}
	sub.CancelledAt = &now
	sub.Touch(ctx, now)

	history := s.newHistory(ctx, sub, types.SubscriptionActionCancelled, lo.ToPtr(sub.TierID), 0, nil)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.SubRepo.CreateHistory(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription cancelled", "family_id", familyID, "subscription_id", sub.ID)
	s.publish(ctx, sub, history)

	return s.toResponse(sub, nil, now), nil
}

func (s *subscriptionService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	filter := types.NewSubscriptionFilter()
	filter.Statuses = []types.SubscriptionStatus{
		types.SubscriptionStatusTrialing,
		types.SubscriptionStatusActive,
	}
	filter.EndingBefore = &now

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range subs {
		if !sub.IsDue(now) {
			continue
		}
		if err := s.expire(ctx, sub, now); err != nil {
			s.Logger.Errorw("failed to expire subscription",
				"subscription_id", sub.ID,
				"family_id", sub.FamilyID,
				"error", err,
			)
			continue
		}
		expired++
	}

	s.Logger.Infow("expired due subscriptions", "candidates", len(subs), "expired", expired)
	return expired, nil
}

func (s *subscriptionService) expire(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	if err := sub.TransitionTo(types.SubscriptionStatusExpired); err != nil {
		return err
	}
	sub.UpdatedAt = now
	sub.UpdatedBy = types.SystemUserID

	history := s.newHistory(ctx, sub, types.SubscriptionActionExpired, lo.ToPtr(sub.TierID), 0, nil)
	history.CreatedBy = types.SystemUserID

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.SubRepo.CreateHistory(ctx, history)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, sub, history)
	return nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, familyID string) (*dto.SubscriptionResponse, error) {
	if err := requireFamily(familyID); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.GetByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	t, err := s.TierRepo.Get(ctx, sub.TierID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	return s.toResponse(sub, t, time.Now().UTC()), nil
}

func (s *subscriptionService) ListHistory(ctx context.Context, familyID string, filter *types.QueryFilter) (*dto.ListSubscriptionHistoryResponse, error) {
	if err := requireFamily(familyID); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	items, err := s.SubRepo.ListHistory(ctx, familyID, filter)
	if err != nil {
		return nil, err
	}

	response := types.NewPageResponse(items, filter)
	return &response, nil
}

func (s *subscriptionService) GetTrialStatus(ctx context.Context, familyID string) (*dto.TrialStatusResponse, error) {
	if err := requireFamily(familyID); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.GetByFamily(ctx, familyID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.TrialStatusResponse{TrialStatus: &subscription.TrialStatus{}}, nil
		}
		return nil, err
	}

	status := subscription.NewTrialStatus(sub, time.Now().UTC(), s.Config.Billing.TrialWarnDays)
	return &dto.TrialStatusResponse{TrialStatus: status}, nil
}

func (s *subscriptionService) toResponse(sub *subscription.Subscription, t *tier.Tier, now time.Time) *dto.SubscriptionResponse {
	return &dto.SubscriptionResponse{
		Subscription: sub,
		Tier:         t,
		Trial:        subscription.NewTrialStatus(sub, now, s.Config.Billing.TrialWarnDays),
	}
}

func (s *subscriptionService) newHistory(
	ctx context.Context,
	sub *subscription.Subscription,
	action types.SubscriptionAction,
	fromTier *string,
	amount int64,
	orderID *string,
) *subscription.History {
	return &subscription.History{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_HISTORY),
		SubscriptionID: sub.ID,
		FamilyID:       sub.FamilyID,
		Action:         action,
		FromTier:       fromTier,
		ToTier:         sub.TierID,
		Amount:         amount,
		OrderID:        orderID,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      lo.CoalesceOrEmpty(types.GetUserID(ctx), types.SystemUserID),
	}
}

func (s *subscriptionService) publish(ctx context.Context, sub *subscription.Subscription, history *subscription.History) {
	publishWebhookEvent(ctx, s.WebhookPublisher, s.Logger,
		types.SubscriptionEventName(history.Action),
		sub.FamilyID,
		&dto.SubscriptionEventPayload{
			SubscriptionID: sub.ID,
			FamilyID:       sub.FamilyID,
			TierID:         sub.TierID,
			FromTier:       history.FromTier,
			Action:         history.Action,
			Status:         sub.SubscriptionStatus,
			ExpiresAt:      sub.EndsAt(),
		},
	)
}

func requireFamily(familyID string) error {
	if familyID == "" {
		return ierr.NewError("family id is required").
			WithHint("Please join or create a family first").
			Mark(ierr.ErrValidation)
	}
	return nil
}
