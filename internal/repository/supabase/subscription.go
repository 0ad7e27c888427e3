package supabase

import (
	"context"
	"sort"

	"github.com/nedpals/supabase-go"
	domainSubscription "github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

type subscriptionRepository struct {
	client *supabase.Client
	log    *logger.Logger
}

func NewSubscriptionRepository(client *supabase.Client, log *logger.Logger) domainSubscription.Repository {
	return &subscriptionRepository{client: client, log: log}
}

func (r *subscriptionRepository) Create(_ context.Context, s *domainSubscription.Subscription) error {
	r.log.Debugw("creating subscription", "subscription_id", s.ID, "family_id", s.FamilyID)

	var rows []domainSubscription.Subscription
	if err := r.client.DB.From(tableSubscriptions).Insert(s).Execute(&rows); err != nil {
		return wrapError(err, "Subscription", map[string]any{"family_id": s.FamilyID})
	}
	return nil
}

func (r *subscriptionRepository) selectOne(column, value string) (*domainSubscription.Subscription, error) {
	var rows []domainSubscription.Subscription
	err := r.client.DB.From(tableSubscriptions).
		Select("*").
		Eq(column, value).
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Subscription", map[string]any{column: value})
	}
	if len(rows) == 0 {
		return nil, notFound("Subscription", map[string]any{column: value})
	}
	return &rows[0], nil
}

func (r *subscriptionRepository) Get(_ context.Context, id string) (*domainSubscription.Subscription, error) {
	return r.selectOne("id", id)
}

func (r *subscriptionRepository) GetByFamily(_ context.Context, familyID string) (*domainSubscription.Subscription, error) {
	return r.selectOne("family_id", familyID)
}

// Update writes nullable columns explicitly so clearing a field sticks
func (r *subscriptionRepository) Update(_ context.Context, s *domainSubscription.Subscription) error {
	var rows []domainSubscription.Subscription
	err := r.client.DB.From(tableSubscriptions).
		Update(map[string]any{
			"tier_id":              s.TierID,
			"billing_period":       s.BillingPeriod,
			"subscription_status":  s.SubscriptionStatus,
			"trial_ends_at":        s.TrialEndsAt,
			"current_period_start": s.CurrentPeriodStart,
			"expires_at":           s.ExpiresAt,
			"cancelled_at":         s.CancelledAt,
			"last_order_id":        s.LastOrderID,
			"updated_at":           s.UpdatedAt,
			"updated_by":           s.UpdatedBy,
		}).
		Eq("id", s.ID).
		Execute(&rows)
	if err != nil {
		return wrapError(err, "Subscription", map[string]any{"subscription_id": s.ID})
	}
	if len(rows) == 0 {
		return notFound("Subscription", map[string]any{"subscription_id": s.ID})
	}
	return nil
}

func (r *subscriptionRepository) listAll() ([]*domainSubscription.Subscription, error) {
	var rows []*domainSubscription.Subscription
	err := r.client.DB.From(tableSubscriptions).
		Select("*").
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Subscription", nil)
	}
	return rows, nil
}

func (r *subscriptionRepository) List(_ context.Context, filter *types.SubscriptionFilter) ([]*domainSubscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	rows, err := r.listAll()
	if err != nil {
		return nil, err
	}

	rows = lo.Filter(rows, func(s *domainSubscription.Subscription, _ int) bool {
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, s.SubscriptionStatus) {
			return false
		}
		if filter.TierID != "" && s.TierID != filter.TierID {
			return false
		}
		if filter.EndingBefore != nil {
			end := s.EndsAt()
			if end == nil || end.After(*filter.EndingBefore) {
				return false
			}
		}
		return true
	})
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return page(rows, filter), nil
}

func (r *subscriptionRepository) CountByTierAndStatus(_ context.Context) ([]*domainSubscription.TierCount, error) {
	rows, err := r.listAll()
	if err != nil {
		return nil, err
	}

	type key struct {
		tier   string
		status types.SubscriptionStatus
	}
	counts := lo.CountValuesBy(rows, func(s *domainSubscription.Subscription) key {
		return key{tier: s.TierID, status: s.SubscriptionStatus}
	})

	result := make([]*domainSubscription.TierCount, 0, len(counts))
	for k, n := range counts {
		result = append(result, &domainSubscription.TierCount{
			TierID:             k.tier,
			SubscriptionStatus: k.status,
			Count:              n,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TierID != result[j].TierID {
			return result[i].TierID < result[j].TierID
		}
		return result[i].SubscriptionStatus < result[j].SubscriptionStatus
	})
	return result, nil
}

func (r *subscriptionRepository) CreateHistory(_ context.Context, h *domainSubscription.History) error {
	var rows []domainSubscription.History
	if err := r.client.DB.From(tableHistory).Insert(h).Execute(&rows); err != nil {
		return wrapError(err, "Subscription history", map[string]any{"subscription_id": h.SubscriptionID})
	}
	return nil
}

func (r *subscriptionRepository) ListHistory(_ context.Context, familyID string, filter *types.QueryFilter) ([]*domainSubscription.History, error) {
	var rows []*domainSubscription.History
	err := r.client.DB.From(tableHistory).
		Select("*").
		Eq("family_id", familyID).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Subscription history", map[string]any{"family_id": familyID})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return page(rows, filter), nil
}
