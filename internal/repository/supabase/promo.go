package supabase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nedpals/supabase-go"
	"github.com/rumahku/billing/internal/cache"
	domainPromo "github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

const redeemMaxAttempts = 5

type promoRepository struct {
	client *supabase.Client
	log    *logger.Logger
	cache  cache.Cache
	ttl    time.Duration
}

func NewPromoRepository(client *supabase.Client, log *logger.Logger, c cache.Cache, ttl time.Duration) domainPromo.Repository {
	return &promoRepository{client: client, log: log, cache: c, ttl: ttl}
}

func (r *promoRepository) Create(_ context.Context, p *domainPromo.PromoCode) error {
	r.log.Debugw("creating promo code", "promo_code_id", p.ID, "code", p.Code)

	var rows []domainPromo.PromoCode
	if err := r.client.DB.From(tablePromoCodes).Insert(p).Execute(&rows); err != nil {
		return wrapError(err, "Promo code", map[string]any{"code": p.Code})
	}
	return nil
}

func (r *promoRepository) selectOne(column, value string) (*domainPromo.PromoCode, error) {
	var rows []domainPromo.PromoCode
	err := r.client.DB.From(tablePromoCodes).
		Select("*").
		Eq(column, value).
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Promo code", map[string]any{column: value})
	}
	if len(rows) == 0 {
		return nil, notFound("Promo code", map[string]any{column: value})
	}
	return &rows[0], nil
}

func (r *promoRepository) Get(_ context.Context, id string) (*domainPromo.PromoCode, error) {
	return r.selectOne("id", id)
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*domainPromo.PromoCode, error) {
	code = domainPromo.NormalizeCode(code)
	cacheKey := cache.GenerateKey(cache.PrefixPromoCode, code)
	if p, ok := cache.GetTyped[*domainPromo.PromoCode](ctx, r.cache, cacheKey); ok {
		return p, nil
	}

	p, err := r.selectOne("code", code)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, cacheKey, p, r.ttl)
	return p, nil
}

func (r *promoRepository) listAll(filter *types.PromoCodeFilter) ([]*domainPromo.PromoCode, error) {
	var rows []*domainPromo.PromoCode
	err := r.client.DB.From(tablePromoCodes).
		Select("*").
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Promo code", nil)
	}

	if filter != nil {
		search := strings.ToUpper(strings.TrimSpace(filter.Search))
		rows = lo.Filter(rows, func(p *domainPromo.PromoCode, _ int) bool {
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				return false
			}
			if search != "" && !strings.Contains(p.Code, search) &&
				!strings.Contains(strings.ToUpper(p.Description), search) {
				return false
			}
			if filter.TierID != "" && !p.AppliesTo(filter.TierID) {
				return false
			}
			return true
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

func (r *promoRepository) List(_ context.Context, filter *types.PromoCodeFilter) ([]*domainPromo.PromoCode, error) {
	if filter == nil {
		filter = types.NewPromoCodeFilter()
	}
	rows, err := r.listAll(filter)
	if err != nil {
		return nil, err
	}
	return page(rows, filter), nil
}

func (r *promoRepository) Count(_ context.Context, filter *types.PromoCodeFilter) (int, error) {
	rows, err := r.listAll(filter)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Update never writes current_uses, Redeem owns it
func (r *promoRepository) Update(ctx context.Context, p *domainPromo.PromoCode) error {
	var rows []domainPromo.PromoCode
	err := r.client.DB.From(tablePromoCodes).
		Update(map[string]any{
			"code":             p.Code,
			"description":      p.Description,
			"discount_type":    p.DiscountType,
			"discount_value":   p.DiscountValue,
			"is_active":        p.IsActive,
			"valid_from":       p.ValidFrom,
			"valid_until":      p.ValidUntil,
			"max_uses":         p.MaxUses,
			"applicable_tiers": lo.Ternary[[]string](len(p.ApplicableTiers) == 0, nil, p.ApplicableTiers),
			"updated_at":       p.UpdatedAt,
			"updated_by":       p.UpdatedBy,
		}).
		Eq("id", p.ID).
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return wrapError(err, "Promo code", map[string]any{"promo_code_id": p.ID})
	}
	if len(rows) == 0 {
		return notFound("Promo code", map[string]any{"promo_code_id": p.ID})
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixPromoCode)
	return nil
}

func (r *promoRepository) Delete(ctx context.Context, id string) error {
	var rows []domainPromo.PromoCode
	err := r.client.DB.From(tablePromoCodes).
		Update(map[string]any{
			"status":     types.StatusArchived,
			"is_active":  false,
			"updated_at": time.Now().UTC(),
			"updated_by": types.GetUserID(ctx),
		}).
		Eq("id", id).
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return wrapError(err, "Promo code", map[string]any{"promo_code_id": id})
	}
	if len(rows) == 0 {
		return notFound("Promo code", map[string]any{"promo_code_id": id})
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixPromoCode)
	return nil
}

// Redeem runs a compare and swap on current_uses. PostgREST has no multi
// statement transactions, so a lost race is retried with backoff until the
// cap check fails or the swap lands.
func (r *promoRepository) Redeem(ctx context.Context, redemption *domainPromo.Redemption) (*domainPromo.PromoCode, error) {
	var redeemed *domainPromo.PromoCode

	operation := func() error {
		current, err := r.selectOne("id", redemption.PromoCodeID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		if current.IsExhausted() {
			return backoff.Permanent(domainPromo.NewRejectionError(types.PromoRejectionUsageExceeded, redemption.Code))
		}

		var rows []domainPromo.PromoCode
		err = r.client.DB.From(tablePromoCodes).
			Update(map[string]any{
				"current_uses": current.CurrentUses + 1,
				"updated_at":   redemption.RedeemedAt,
			}).
			Eq("id", current.ID).
			Eq("current_uses", itoa(current.CurrentUses)).
			Execute(&rows)
		if err != nil {
			return wrapError(err, "Promo code", map[string]any{"promo_code_id": current.ID})
		}
		if len(rows) == 0 {
			r.log.Debugw("promo redemption lost race, retrying", "promo_code_id", current.ID)
			return ierr.NewError("promo usage changed concurrently").Mark(ierr.ErrVersionConflict)
		}

		redeemed = &rows[0]
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), redeemMaxAttempts),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if ierr.IsVersionConflict(err) {
			return nil, ierr.WithError(err).
				WithHint("Promo code is busy, please retry").
				Mark(ierr.ErrUnavailable)
		}
		return nil, err
	}

	var usage []domainPromo.Redemption
	if err := r.client.DB.From(tablePromoUsage).Insert(redemption).Execute(&usage); err != nil {
		return nil, wrapError(err, "Promo redemption", map[string]any{"order_id": redemption.OrderID})
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixPromoCode)
	return redeemed, nil
}

func (r *promoRepository) ListRedemptions(_ context.Context, promoCodeID string, filter *types.QueryFilter) ([]*domainPromo.Redemption, error) {
	var rows []*domainPromo.Redemption
	err := r.client.DB.From(tablePromoUsage).
		Select("*").
		Eq("promo_code_id", promoCodeID).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Promo redemption", map[string]any{"promo_code_id": promoCodeID})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RedeemedAt.After(rows[j].RedeemedAt)
	})
	return page(rows, filter), nil
}

func (r *promoRepository) GetStats(_ context.Context, now time.Time) (*domainPromo.Stats, error) {
	rows, err := r.listAll(nil)
	if err != nil {
		return nil, err
	}

	stats := &domainPromo.Stats{TotalCodes: len(rows)}
	for _, p := range rows {
		if p.IsActive {
			stats.ActiveCodes++
		}
		if p.IsExpired(now) {
			stats.ExpiredCodes++
		}
		stats.TotalUses += p.CurrentUses
	}
	return stats, nil
}
