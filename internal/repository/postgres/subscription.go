package postgres

import (
	"context"

	"github.com/lib/pq"
	domainSubscription "github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

type subscriptionRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, log *logger.Logger) domainSubscription.Repository {
	return &subscriptionRepository{db: db, log: log}
}

func (r *subscriptionRepository) Create(ctx context.Context, s *domainSubscription.Subscription) error {
	r.log.Debugw("creating subscription", "subscription_id", s.ID, "family_id", s.FamilyID)

	span := StartRepositorySpan(ctx, "subscription", "create", map[string]interface{}{"family_id": s.FamilyID})
	defer FinishSpan(span)

	query := `
		INSERT INTO subscriptions (
			id, family_id, tier_id, billing_period, subscription_status, trial_ends_at,
			current_period_start, expires_at, cancelled_at, last_order_id,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :family_id, :tier_id, :billing_period, :subscription_status, :trial_ends_at,
			:current_period_start, :expires_at, :cancelled_at, :last_order_id,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Subscription", map[string]any{"family_id": s.FamilyID})
	}

	SetSpanSuccess(span)
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*domainSubscription.Subscription, error) {
	var s domainSubscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &s, `SELECT * FROM subscriptions WHERE id = $1`, id); err != nil {
		return nil, postgres.WrapError(err, "Subscription", map[string]any{"subscription_id": id})
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByFamily(ctx context.Context, familyID string) (*domainSubscription.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "get_by_family", map[string]interface{}{"family_id": familyID})
	defer FinishSpan(span)

	var s domainSubscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &s,
		`SELECT * FROM subscriptions WHERE family_id = $1 AND status = $2`, familyID, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Subscription", map[string]any{"family_id": familyID})
	}

	SetSpanSuccess(span)
	return &s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *domainSubscription.Subscription) error {
	span := StartRepositorySpan(ctx, "subscription", "update", map[string]interface{}{
		"subscription_id":     s.ID,
		"subscription_status": s.SubscriptionStatus,
	})
	defer FinishSpan(span)

	query := `
		UPDATE subscriptions SET
			tier_id = :tier_id,
			billing_period = :billing_period,
			subscription_status = :subscription_status,
			trial_ends_at = :trial_ends_at,
			current_period_start = :current_period_start,
			expires_at = :expires_at,
			cancelled_at = :cancelled_at,
			last_order_id = :last_order_id,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s)
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Subscription", map[string]any{"subscription_id": s.ID})
	}
	if err := requireAffected(result, "Subscription", s.ID); err != nil {
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*domainSubscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	c := &conditions{}
	c.add("status = ?", types.StatusPublished)
	if len(filter.Statuses) > 0 {
		c.add("subscription_status = ANY(?)", pq.Array(lo.Map(filter.Statuses, func(s types.SubscriptionStatus, _ int) string {
			return string(s)
		})))
	}
	if filter.TierID != "" {
		c.add("tier_id = ?", filter.TierID)
	}
	if filter.EndingBefore != nil {
		c.add("(CASE WHEN subscription_status = 'trialing' THEN trial_ends_at ELSE expires_at END) <= ?", *filter.EndingBefore)
	}
	query, args := c.build(`SELECT * FROM subscriptions`, paginate("created_at, id", filter))

	var subs []*domainSubscription.Subscription
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Subscription", nil)
	}
	return subs, nil
}

func (r *subscriptionRepository) CountByTierAndStatus(ctx context.Context) ([]*domainSubscription.TierCount, error) {
	var counts []*domainSubscription.TierCount
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &counts, `
		SELECT tier_id, subscription_status, COUNT(*) AS count
		FROM subscriptions
		WHERE status = $1
		GROUP BY tier_id, subscription_status
		ORDER BY tier_id, subscription_status`, types.StatusPublished)
	if err != nil {
		return nil, postgres.WrapError(err, "Subscription", nil)
	}
	return counts, nil
}

func (r *subscriptionRepository) CreateHistory(ctx context.Context, h *domainSubscription.History) error {
	query := `
		INSERT INTO subscription_history (
			id, subscription_id, family_id, action, from_tier, to_tier, amount, order_id, created_at, created_by
		) VALUES (
			:id, :subscription_id, :family_id, :action, :from_tier, :to_tier, :amount, :order_id, :created_at, :created_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, h); err != nil {
		return postgres.WrapError(err, "Subscription history", map[string]any{"subscription_id": h.SubscriptionID})
	}
	return nil
}

func (r *subscriptionRepository) ListHistory(ctx context.Context, familyID string, filter *types.QueryFilter) ([]*domainSubscription.History, error) {
	c := &conditions{}
	c.add("family_id = ?", familyID)
	query, args := c.build(`SELECT * FROM subscription_history`, paginate("created_at DESC, id", filter))

	var history []*domainSubscription.History
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &history, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Subscription history", map[string]any{"family_id": familyID})
	}
	return history, nil
}
