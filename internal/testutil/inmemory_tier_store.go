package testutil

import (
	"context"
	"slices"

	"github.com/rumahku/billing/internal/domain/tier"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
)

// InMemoryTierStore implements tier.Repository
type InMemoryTierStore struct {
	*InMemoryStore[*tier.Tier]
}

func NewInMemoryTierStore() *InMemoryTierStore {
	return &InMemoryTierStore{
		InMemoryStore: NewInMemoryStore[*tier.Tier](),
	}
}

func copyTier(t *tier.Tier) *tier.Tier {
	if t == nil {
		return nil
	}
	copied := *t
	copied.Features = slices.Clone(t.Features)
	return &copied
}

func (s *InMemoryTierStore) Get(ctx context.Context, id string) (*tier.Tier, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || t.Status != types.StatusPublished {
		return nil, ierr.NewError("tier not found").
			WithHintf("Plan %s does not exist", id).
			WithReportableDetails(map[string]any{
				"tier_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyTier(t), nil
}

func (s *InMemoryTierStore) List(ctx context.Context) ([]*tier.Tier, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, t *tier.Tier, _ interface{}) bool {
		return t.Status == types.StatusPublished
	}, func(i, j *tier.Tier) bool {
		return i.SortOrder < j.SortOrder
	})
	if err != nil {
		return nil, err
	}

	tiers := make([]*tier.Tier, 0, len(items))
	for _, t := range items {
		tiers = append(tiers, copyTier(t))
	}
	return tiers, nil
}

func (s *InMemoryTierStore) Upsert(ctx context.Context, t *tier.Tier) error {
	if t == nil {
		return ierr.NewError("tier cannot be nil").
			WithHint("Tier cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if _, err := s.InMemoryStore.Get(ctx, t.ID); err == nil {
		return s.InMemoryStore.Update(ctx, t.ID, copyTier(t))
	}
	return s.InMemoryStore.Create(ctx, t.ID, copyTier(t))
}
