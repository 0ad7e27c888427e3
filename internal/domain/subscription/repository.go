package subscription

import (
	"context"

	"github.com/rumahku/billing/internal/types"
)

type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetByFamily returns the family's subscription or ErrNotFound
	GetByFamily(ctx context.Context, familyID string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	CountByTierAndStatus(ctx context.Context) ([]*TierCount, error)

	CreateHistory(ctx context.Context, h *History) error
	ListHistory(ctx context.Context, familyID string, filter *types.QueryFilter) ([]*History, error)
}
