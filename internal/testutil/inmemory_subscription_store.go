package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/rumahku/billing/internal/domain/subscription"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	mu      sync.RWMutex
	history []*subscription.History
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(s *subscription.Subscription) *subscription.Subscription {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func notFoundSubscription(key string) error {
	return ierr.NewError("subscription not found").
		WithHint("Subscription not found").
		WithReportableDetails(map[string]any{
			"subscription": key,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.history = nil
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if _, found := s.InMemoryStore.Find(ctx, func(existing *subscription.Subscription) bool {
		return existing.FamilyID == sub.FamilyID && existing.Status == types.StatusPublished
	}); found {
		return ierr.NewError("family already has a subscription").
			WithHint("Family already has a subscription").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.Status != types.StatusPublished {
		return nil, notFoundSubscription(id)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) GetByFamily(ctx context.Context, familyID string) (*subscription.Subscription, error) {
	sub, found := s.InMemoryStore.Find(ctx, func(sub *subscription.Subscription) bool {
		return sub.FamilyID == familyID && sub.Status == types.StatusPublished
	})
	if !found {
		return nil, notFoundSubscription(familyID)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if err := s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub)); err != nil {
		return notFoundSubscription(sub.ID)
	}
	return nil
}

func subscriptionFilterFn(_ context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub.Status != types.StatusPublished {
		return false
	}
	f, ok := filter.(*types.SubscriptionFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, sub.SubscriptionStatus) {
		return false
	}
	if f.TierID != "" && sub.TierID != f.TierID {
		return false
	}
	if f.EndingBefore != nil {
		end := sub.EndsAt()
		if end == nil || end.After(*f.EndingBefore) {
			return false
		}
	}
	return true
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	items, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) CountByTierAndStatus(ctx context.Context) ([]*subscription.TierCount, error) {
	items, err := s.InMemoryStore.List(ctx, nil, subscriptionFilterFn, nil)
	if err != nil {
		return nil, err
	}

	type key struct {
		tier   string
		status types.SubscriptionStatus
	}
	counts := lo.CountValuesBy(items, func(sub *subscription.Subscription) key {
		return key{tier: sub.TierID, status: sub.SubscriptionStatus}
	})

	result := make([]*subscription.TierCount, 0, len(counts))
	for k, n := range counts {
		result = append(result, &subscription.TierCount{TierID: k.tier, SubscriptionStatus: k.status, Count: n})
	}
	slices.SortFunc(result, func(a, b *subscription.TierCount) int {
		if a.TierID != b.TierID {
			if a.TierID < b.TierID {
				return -1
			}
			return 1
		}
		if a.SubscriptionStatus < b.SubscriptionStatus {
			return -1
		}
		if a.SubscriptionStatus > b.SubscriptionStatus {
			return 1
		}
		return 0
	})
	return result, nil
}

func (s *InMemorySubscriptionStore) CreateHistory(_ context.Context, h *subscription.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *h
	s.history = append(s.history, &copied)
	return nil
}

func (s *InMemorySubscriptionStore) ListHistory(_ context.Context, familyID string, filter *types.QueryFilter) ([]*subscription.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := lo.Filter(s.history, func(h *subscription.History, _ int) bool { return h.FamilyID == familyID })
	slices.Reverse(items)

	if filter.IsUnlimited() {
		return items, nil
	}
	start := min(filter.GetOffset(), len(items))
	end := min(start+filter.GetLimit(), len(items))
	return items[start:end], nil
}
