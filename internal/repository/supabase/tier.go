package supabase

import (
	"context"
	"sort"
	"time"

	"github.com/nedpals/supabase-go"
	"github.com/rumahku/billing/internal/cache"
	domainTier "github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
)

type tierRepository struct {
	client *supabase.Client
	log    *logger.Logger
	cache  cache.Cache
	ttl    time.Duration
}

// tierRow keeps features loosely typed until ParseFeatures accepts them
type tierRow struct {
	domainTier.Tier
	Features []any `json:"features"`
}

func (r tierRow) toDomain() (*domainTier.Tier, error) {
	features, err := domainTier.ParseFeatures(r.Features)
	if err != nil {
		return nil, err
	}
	t := r.Tier
	t.Features = features
	return &t, nil
}

func NewTierRepository(client *supabase.Client, log *logger.Logger, c cache.Cache, ttl time.Duration) domainTier.Repository {
	return &tierRepository{client: client, log: log, cache: c, ttl: ttl}
}

func (r *tierRepository) Get(_ context.Context, id string) (*domainTier.Tier, error) {
	var rows []tierRow
	err := r.client.DB.From(tableTiers).
		Select("*").
		Eq("id", id).
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Tier", map[string]any{"tier_id": id})
	}
	if len(rows) == 0 {
		return nil, notFound("Tier", map[string]any{"tier_id": id})
	}
	return rows[0].toDomain()
}

func (r *tierRepository) List(ctx context.Context) ([]*domainTier.Tier, error) {
	listKey := cache.GenerateKey(cache.PrefixTierList, "all")
	if tiers, ok := cache.GetTyped[[]*domainTier.Tier](ctx, r.cache, listKey); ok {
		return tiers, nil
	}

	var rows []tierRow
	err := r.client.DB.From(tableTiers).
		Select("*").
		Eq("status", string(types.StatusPublished)).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Tier", nil)
	}

	tiers := make([]*domainTier.Tier, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].SortOrder != tiers[j].SortOrder {
			return tiers[i].SortOrder < tiers[j].SortOrder
		}
		return tiers[i].ID < tiers[j].ID
	})

	r.cache.Set(ctx, listKey, tiers, r.ttl)
	return tiers, nil
}

func (r *tierRepository) Upsert(ctx context.Context, t *domainTier.Tier) error {
	r.log.Debugw("upserting tier", "tier_id", t.ID)

	var updated []tierRow
	err := r.client.DB.From(tableTiers).
		Update(map[string]any{
			"name":          t.Name,
			"description":   t.Description,
			"monthly_price": t.MonthlyPrice,
			"yearly_price":  t.YearlyPrice,
			"currency":      t.Currency,
			"max_members":   t.MaxMembers,
			"sort_order":    t.SortOrder,
			"features":      t.Features,
			"status":        t.Status,
			"updated_at":    t.UpdatedAt,
			"updated_by":    t.UpdatedBy,
		}).
		Eq("id", t.ID).
		Execute(&updated)
	if err != nil {
		return wrapError(err, "Tier", map[string]any{"tier_id": t.ID})
	}

	if len(updated) == 0 {
		var inserted []tierRow
		if err := r.client.DB.From(tableTiers).Insert(t).Execute(&inserted); err != nil {
			return wrapError(err, "Tier", map[string]any{"tier_id": t.ID})
		}
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTierList)
	return nil
}
