package postgres

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/cache"
	domainTier "github.com/rumahku/billing/internal/domain/tier"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type tierRepository struct {
	db    *postgres.DB
	log   *logger.Logger
	cache cache.Cache
	ttl   time.Duration
}

// tierRow carries the raw JSONB feature list, validated on read
type tierRow struct {
	domainTier.Tier
	FeaturesJSON []byte `db:"features"`
}

func (r tierRow) toDomain() (*domainTier.Tier, error) {
	var raw []any
	if len(r.FeaturesJSON) > 0 {
		if err := json.Unmarshal(r.FeaturesJSON, &raw); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Tier %s has a malformed feature list", r.ID).
				Mark(ierr.ErrValidation)
		}
	}

	features, err := domainTier.ParseFeatures(raw)
	if err != nil {
		return nil, err
	}

	t := r.Tier
	t.Features = features
	return &t, nil
}

func NewTierRepository(db *postgres.DB, log *logger.Logger, c cache.Cache, ttl time.Duration) domainTier.Repository {
	return &tierRepository{db: db, log: log, cache: c, ttl: ttl}
}

func (r *tierRepository) Get(ctx context.Context, id string) (*domainTier.Tier, error) {
	if t := r.GetCache(ctx, id); t != nil {
		return t, nil
	}

	span := StartRepositorySpan(ctx, "tier", "get", map[string]interface{}{"tier_id": id})
	defer FinishSpan(span)

	var row tierRow
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row,
		`SELECT * FROM subscription_tiers WHERE id = $1 AND status = $2`, id, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Tier", map[string]any{"tier_id": id})
	}

	t, err := row.toDomain()
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	r.SetCache(ctx, t)
	return t, nil
}

func (r *tierRepository) List(ctx context.Context) ([]*domainTier.Tier, error) {
	listKey := cache.GenerateKey(cache.PrefixTierList, "all")
	if tiers, ok := cache.GetTyped[[]*domainTier.Tier](ctx, r.cache, listKey); ok {
		return tiers, nil
	}

	span := StartRepositorySpan(ctx, "tier", "list", nil)
	defer FinishSpan(span)

	var rows []tierRow
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows,
		`SELECT * FROM subscription_tiers WHERE status = $1 ORDER BY sort_order, id`, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Tier", nil)
	}

	tiers := make([]*domainTier.Tier, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			SetSpanError(span, err)
			return nil, err
		}
		tiers = append(tiers, t)
	}

	SetSpanSuccess(span)
	r.cache.Set(ctx, listKey, tiers, r.ttl)
	return tiers, nil
}

func (r *tierRepository) Upsert(ctx context.Context, t *domainTier.Tier) error {
	r.log.Debugw("upserting tier", "tier_id", t.ID)

	span := StartRepositorySpan(ctx, "tier", "upsert", map[string]interface{}{"tier_id": t.ID})
	defer FinishSpan(span)

	features, err := json.Marshal(t.Features)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).WithHint("Failed to encode tier features").Mark(ierr.ErrSystem)
	}

	query := `
		INSERT INTO subscription_tiers (
			id, name, description, monthly_price, yearly_price, currency, max_members, sort_order,
			features, status, created_at, updated_at, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			monthly_price = EXCLUDED.monthly_price,
			yearly_price = EXCLUDED.yearly_price,
			currency = EXCLUDED.currency,
			max_members = EXCLUDED.max_members,
			sort_order = EXCLUDED.sort_order,
			features = EXCLUDED.features,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`

	_, err = r.db.GetQuerier(ctx).ExecContext(ctx, query,
		t.ID, t.Name, t.Description, t.MonthlyPrice, t.YearlyPrice, t.Currency, t.MaxMembers, t.SortOrder,
		features, t.Status, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Tier", map[string]any{"tier_id": t.ID})
	}

	SetSpanSuccess(span)
	r.DeleteCache(ctx, t.ID)
	return nil
}

func (r *tierRepository) SetCache(ctx context.Context, t *domainTier.Tier) {
	span := cache.StartCacheSpan(ctx, "tier", "set", map[string]interface{}{"tier_id": t.ID})
	defer cache.FinishSpan(span)

	cacheKey := cache.GenerateKey(cache.PrefixTier, t.ID)
	r.cache.Set(ctx, cacheKey, t, r.ttl)
	r.log.Debugw("cache set", "key", cacheKey)
}

func (r *tierRepository) GetCache(ctx context.Context, id string) *domainTier.Tier {
	cacheKey := cache.GenerateKey(cache.PrefixTier, id)
	if t, ok := cache.GetTyped[*domainTier.Tier](ctx, r.cache, cacheKey); ok {
		r.log.Debugw("cache hit", "key", cacheKey)
		return t
	}
	return nil
}

func (r *tierRepository) DeleteCache(ctx context.Context, id string) {
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixTier, id))
	r.cache.DeleteByPrefix(ctx, cache.PrefixTierList)
}
