package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryPromoStore implements promo.Repository
type InMemoryPromoStore struct {
	*InMemoryStore[*promo.PromoCode]
	mu          sync.RWMutex
	redemptions []*promo.Redemption
	// FailWith makes GetByCode return the error, simulating an outage
	FailWith error
	// Delay makes GetByCode block, simulating a slow store
	Delay time.Duration
}

func NewInMemoryPromoStore() *InMemoryPromoStore {
	return &InMemoryPromoStore{
		InMemoryStore: NewInMemoryStore[*promo.PromoCode](),
	}
}

func copyPromo(p *promo.PromoCode) *promo.PromoCode {
	if p == nil {
		return nil
	}
	copied := *p
	copied.ApplicableTiers = slices.Clone(p.ApplicableTiers)
	return &copied
}

func notFoundPromo(key string) error {
	return ierr.NewError("promo code not found").
		WithHint("Promo code not found").
		WithReportableDetails(map[string]any{
			"promo_code": key,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPromoStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.redemptions = nil
	s.FailWith = nil
	s.Delay = 0
}

func (s *InMemoryPromoStore) Create(ctx context.Context, p *promo.PromoCode) error {
	if p == nil {
		return ierr.NewError("promo code cannot be nil").
			WithHint("Promo code cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if _, found := s.InMemoryStore.Find(ctx, func(existing *promo.PromoCode) bool {
		return existing.Code == p.Code && existing.Status == types.StatusPublished
	}); found {
		return ierr.NewError("promo code already exists").
			WithHintf("Promo code %s already exists", p.Code).
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, p.ID, copyPromo(p))
}

func (s *InMemoryPromoStore) Get(ctx context.Context, id string) (*promo.PromoCode, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.Status != types.StatusPublished {
		return nil, notFoundPromo(id)
	}
	return copyPromo(p), nil
}

func (s *InMemoryPromoStore) GetByCode(ctx context.Context, code string) (*promo.PromoCode, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	normalized := promo.NormalizeCode(code)
	p, found := s.InMemoryStore.Find(ctx, func(p *promo.PromoCode) bool {
		return p.Code == normalized && p.Status == types.StatusPublished
	})
	if !found {
		return nil, notFoundPromo(normalized)
	}
	return copyPromo(p), nil
}

func promoFilterFn(ctx context.Context, p *promo.PromoCode, filter interface{}) bool {
	if p.Status != types.StatusPublished {
		return false
	}
	f, ok := filter.(*types.PromoCodeFilter)
	if !ok || f == nil {
		return true
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.Search != "" && !strings.Contains(p.Code, strings.ToUpper(f.Search)) &&
		!strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.TierID != "" && !p.AppliesTo(f.TierID) {
		return false
	}
	return true
}

func promoSortFn(i, j *promo.PromoCode) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPromoStore) List(ctx context.Context, filter *types.PromoCodeFilter) ([]*promo.PromoCode, error) {
	items, err := s.InMemoryStore.List(ctx, filter, promoFilterFn, promoSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *promo.PromoCode, _ int) *promo.PromoCode { return copyPromo(p) }), nil
}

func (s *InMemoryPromoStore) Count(ctx context.Context, filter *types.PromoCodeFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, promoFilterFn)
}

func (s *InMemoryPromoStore) Update(ctx context.Context, p *promo.PromoCode) error {
	if p == nil {
		return ierr.NewError("promo code cannot be nil").
			WithHint("Promo code cannot be nil").
			Mark(ierr.ErrValidation)
	}

	// current_uses only moves through Redeem
	_, err := s.InMemoryStore.Mutate(ctx, p.ID, func(existing *promo.PromoCode) (*promo.PromoCode, error) {
		if existing.Status != types.StatusPublished {
			return nil, notFoundPromo(p.ID)
		}
		updated := copyPromo(p)
		updated.CurrentUses = existing.CurrentUses
		return updated, nil
	})
	if ierr.IsNotFound(err) {
		return notFoundPromo(p.ID)
	}
	return err
}

func (s *InMemoryPromoStore) Delete(ctx context.Context, id string) error {
	_, err := s.InMemoryStore.Mutate(ctx, id, func(existing *promo.PromoCode) (*promo.PromoCode, error) {
		if existing.Status != types.StatusPublished {
			return nil, notFoundPromo(id)
		}
		archived := copyPromo(existing)
		archived.Status = types.StatusArchived
		archived.IsActive = false
		archived.UpdatedAt = time.Now().UTC()
		return archived, nil
	})
	if ierr.IsNotFound(err) {
		return notFoundPromo(id)
	}
	return err
}

// Redeem checks the cap and increments under the store lock
func (s *InMemoryPromoStore) Redeem(ctx context.Context, r *promo.Redemption) (*promo.PromoCode, error) {
	redeemed, err := s.InMemoryStore.Mutate(ctx, r.PromoCodeID, func(existing *promo.PromoCode) (*promo.PromoCode, error) {
		if existing.Status != types.StatusPublished {
			return nil, notFoundPromo(r.PromoCodeID)
		}
		if existing.IsExhausted() {
			return nil, promo.NewRejectionError(types.PromoRejectionUsageExceeded, existing.Code)
		}
		updated := copyPromo(existing)
		updated.CurrentUses++
		updated.UpdatedAt = r.RedeemedAt
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	copied := *r
	s.redemptions = append(s.redemptions, &copied)
	s.mu.Unlock()

	return copyPromo(redeemed), nil
}

func (s *InMemoryPromoStore) ListRedemptions(ctx context.Context, promoCodeID string, filter *types.QueryFilter) ([]*promo.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := lo.Filter(s.redemptions, func(r *promo.Redemption, _ int) bool {
		return r.PromoCodeID == promoCodeID
	})
	slices.SortFunc(items, func(a, b *promo.Redemption) int {
		return b.RedeemedAt.Compare(a.RedeemedAt)
	})

	if filter.IsUnlimited() {
		return items, nil
	}
	start := min(filter.GetOffset(), len(items))
	end := min(start+filter.GetLimit(), len(items))
	return items[start:end], nil
}

func (s *InMemoryPromoStore) GetStats(ctx context.Context, now time.Time) (*promo.Stats, error) {
	items, err := s.InMemoryStore.List(ctx, nil, promoFilterFn, nil)
	if err != nil {
		return nil, err
	}

	return &promo.Stats{
		TotalCodes:   len(items),
		ActiveCodes:  lo.CountBy(items, func(p *promo.PromoCode) bool { return p.IsActive }),
		TotalUses:    lo.SumBy(items, func(p *promo.PromoCode) int { return p.CurrentUses }),
		ExpiredCodes: lo.CountBy(items, func(p *promo.PromoCode) bool { return p.IsExpired(now) }),
	}, nil
}

// Redemptions returns every stored redemption
func (s *InMemoryPromoStore) Redemptions() []*promo.Redemption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.redemptions)
}
