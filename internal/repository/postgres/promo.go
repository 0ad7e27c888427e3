package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rumahku/billing/internal/cache"
	domainPromo "github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/types"
)

type promoRepository struct {
	db    *postgres.DB
	log   *logger.Logger
	cache cache.Cache
	ttl   time.Duration
}

type promoRow struct {
	domainPromo.PromoCode
	ApplicableTiers pq.StringArray `db:"applicable_tiers"`
}

func (r promoRow) toDomain() *domainPromo.PromoCode {
	p := r.PromoCode
	p.ApplicableTiers = []string(r.ApplicableTiers)
	return &p
}

func tiersParam(tiers []string) interface{} {
	if len(tiers) == 0 {
		return nil
	}
	return pq.StringArray(tiers)
}

func NewPromoRepository(db *postgres.DB, log *logger.Logger, c cache.Cache, ttl time.Duration) domainPromo.Repository {
	return &promoRepository{db: db, log: log, cache: c, ttl: ttl}
}

func (r *promoRepository) Create(ctx context.Context, p *domainPromo.PromoCode) error {
	r.log.Debugw("creating promo code", "promo_code_id", p.ID, "code", p.Code)

	span := StartRepositorySpan(ctx, "promo_code", "create", map[string]interface{}{"code": p.Code})
	defer FinishSpan(span)

	query := `
		INSERT INTO promo_codes (
			id, code, description, discount_type, discount_value, is_active, valid_from, valid_until,
			max_uses, current_uses, applicable_tiers, status, created_at, updated_at, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.Code, p.Description, p.DiscountType, p.DiscountValue, p.IsActive, p.ValidFrom, p.ValidUntil,
		p.MaxUses, p.CurrentUses, tiersParam(p.ApplicableTiers), p.Status, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Promo code", map[string]any{"code": p.Code})
	}

	SetSpanSuccess(span)
	return nil
}

func (r *promoRepository) Get(ctx context.Context, id string) (*domainPromo.PromoCode, error) {
	span := StartRepositorySpan(ctx, "promo_code", "get", map[string]interface{}{"promo_code_id": id})
	defer FinishSpan(span)

	var row promoRow
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row,
		`SELECT * FROM promo_codes WHERE id = $1 AND status = $2`, id, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Promo code", map[string]any{"promo_code_id": id})
	}

	SetSpanSuccess(span)
	return row.toDomain(), nil
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*domainPromo.PromoCode, error) {
	code = domainPromo.NormalizeCode(code)
	if p := r.GetCache(ctx, code); p != nil {
		return p, nil
	}

	span := StartRepositorySpan(ctx, "promo_code", "get_by_code", map[string]interface{}{"code": code})
	defer FinishSpan(span)

	var row promoRow
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row,
		`SELECT * FROM promo_codes WHERE code = $1 AND status = $2`, code, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Promo code", map[string]any{"code": code})
	}

	SetSpanSuccess(span)
	p := row.toDomain()
	r.SetCache(ctx, p)
	return p, nil
}

func (r *promoRepository) filterConditions(filter *types.PromoCodeFilter) *conditions {
	c := &conditions{}
	c.add("status = ?", types.StatusPublished)
	if filter == nil {
		return c
	}
	if filter.IsActive != nil {
		c.add("is_active = ?", *filter.IsActive)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		c.add("(code ILIKE ? OR description ILIKE ?)", like, like)
	}
	if filter.TierID != "" {
		c.add("(applicable_tiers IS NULL OR cardinality(applicable_tiers) = 0 OR ? = ANY(applicable_tiers))", filter.TierID)
	}
	return c
}

func (r *promoRepository) List(ctx context.Context, filter *types.PromoCodeFilter) ([]*domainPromo.PromoCode, error) {
	if filter == nil {
		filter = types.NewPromoCodeFilter()
	}

	span := StartRepositorySpan(ctx, "promo_code", "list", map[string]interface{}{"filter": filter})
	defer FinishSpan(span)

	query, args := r.filterConditions(filter).build(`SELECT * FROM promo_codes`, paginate("created_at DESC, id", filter))

	var rows []promoRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Promo code", nil)
	}

	SetSpanSuccess(span)
	promos := make([]*domainPromo.PromoCode, 0, len(rows))
	for _, row := range rows {
		promos = append(promos, row.toDomain())
	}
	return promos, nil
}

func (r *promoRepository) Count(ctx context.Context, filter *types.PromoCodeFilter) (int, error) {
	query, args := r.filterConditions(filter).build(`SELECT COUNT(*) FROM promo_codes`, "")

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, postgres.WrapError(err, "Promo code", nil)
	}
	return count, nil
}

// Update writes every admin editable field. current_uses is left alone, it
// only moves through Redeem.
func (r *promoRepository) Update(ctx context.Context, p *domainPromo.PromoCode) error {
	r.log.Debugw("updating promo code", "promo_code_id", p.ID)

	span := StartRepositorySpan(ctx, "promo_code", "update", map[string]interface{}{"promo_code_id": p.ID})
	defer FinishSpan(span)

	query := `
		UPDATE promo_codes SET
			code = $2, description = $3, discount_type = $4, discount_value = $5, is_active = $6,
			valid_from = $7, valid_until = $8, max_uses = $9, applicable_tiers = $10,
			updated_at = $11, updated_by = $12
		WHERE id = $1 AND status = 'published'`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.Code, p.Description, p.DiscountType, p.DiscountValue, p.IsActive,
		p.ValidFrom, p.ValidUntil, p.MaxUses, tiersParam(p.ApplicableTiers),
		p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Promo code", map[string]any{"promo_code_id": p.ID})
	}
	if err := requireAffected(result, "Promo code", p.ID); err != nil {
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	r.DeleteCache(ctx)
	return nil
}

// Delete archives the code so redemption history keeps its reference
func (r *promoRepository) Delete(ctx context.Context, id string) error {
	span := StartRepositorySpan(ctx, "promo_code", "delete", map[string]interface{}{"promo_code_id": id})
	defer FinishSpan(span)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE promo_codes SET status = $2, is_active = FALSE, updated_at = $3, updated_by = $4
		 WHERE id = $1 AND status = 'published'`,
		id, types.StatusArchived, time.Now().UTC(), types.GetUserID(ctx))
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Promo code", map[string]any{"promo_code_id": id})
	}
	if err := requireAffected(result, "Promo code", id); err != nil {
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	r.DeleteCache(ctx)
	return nil
}

// Redeem increments the counter with a single conditional UPDATE, the row
// lock makes concurrent redemptions queue up and re-check the cap.
func (r *promoRepository) Redeem(ctx context.Context, redemption *domainPromo.Redemption) (*domainPromo.PromoCode, error) {
	span := StartRepositorySpan(ctx, "promo_code", "redeem", map[string]interface{}{
		"promo_code_id": redemption.PromoCodeID,
		"order_id":      redemption.OrderID,
	})
	defer FinishSpan(span)

	var redeemed *domainPromo.PromoCode
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		var row promoRow
		err := q.QueryRowxContext(ctx, `
			UPDATE promo_codes
			SET current_uses = current_uses + 1, updated_at = $2
			WHERE id = $1 AND status = 'published' AND (max_uses IS NULL OR current_uses < max_uses)
			RETURNING *`,
			redemption.PromoCodeID, redemption.RedeemedAt,
		).StructScan(&row)
		if err != nil {
			wrapped := postgres.WrapError(err, "Promo code", map[string]any{"promo_code_id": redemption.PromoCodeID})
			if !ierr.IsNotFound(wrapped) {
				return wrapped
			}
			// Either the code vanished or the cap is reached
			if _, getErr := r.Get(ctx, redemption.PromoCodeID); getErr != nil {
				return getErr
			}
			return domainPromo.NewRejectionError(types.PromoRejectionUsageExceeded, redemption.Code)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO promo_code_usage (
				id, promo_code_id, code, family_id, user_id, order_id, tier_id, discount_amount, redeemed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			redemption.ID, redemption.PromoCodeID, redemption.Code, redemption.FamilyID, redemption.UserID,
			redemption.OrderID, redemption.TierID, redemption.DiscountAmount, redemption.RedeemedAt,
		)
		if err != nil {
			return postgres.WrapError(err, "Promo redemption", map[string]any{"order_id": redemption.OrderID})
		}

		redeemed = row.toDomain()
		return nil
	})
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	r.DeleteCache(ctx)
	return redeemed, nil
}

func (r *promoRepository) ListRedemptions(ctx context.Context, promoCodeID string, filter *types.QueryFilter) ([]*domainPromo.Redemption, error) {
	c := &conditions{}
	c.add("promo_code_id = ?", promoCodeID)
	query, args := c.build(`SELECT * FROM promo_code_usage`, paginate("redeemed_at DESC, id", filter))

	var redemptions []*domainPromo.Redemption
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &redemptions, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Promo redemption", map[string]any{"promo_code_id": promoCodeID})
	}
	return redemptions, nil
}

func (r *promoRepository) GetStats(ctx context.Context, now time.Time) (*domainPromo.Stats, error) {
	span := StartRepositorySpan(ctx, "promo_code", "stats", nil)
	defer FinishSpan(span)

	var stats domainPromo.Stats
	err := r.db.GetQuerier(ctx).GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_codes,
			COUNT(*) FILTER (WHERE is_active) AS active_codes,
			COALESCE(SUM(current_uses), 0) AS total_uses,
			COUNT(*) FILTER (WHERE valid_until IS NOT NULL AND valid_until < $1) AS expired_codes
		FROM promo_codes
		WHERE status = 'published'`, now)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Promo code", nil)
	}

	SetSpanSuccess(span)
	return &stats, nil
}

func (r *promoRepository) SetCache(ctx context.Context, p *domainPromo.PromoCode) {
	cacheKey := cache.GenerateKey(cache.PrefixPromoCode, p.Code)
	r.cache.Set(ctx, cacheKey, p, r.ttl)
	r.log.Debugw("cache set", "key", cacheKey)
}

func (r *promoRepository) GetCache(ctx context.Context, code string) *domainPromo.PromoCode {
	cacheKey := cache.GenerateKey(cache.PrefixPromoCode, code)
	if p, ok := cache.GetTyped[*domainPromo.PromoCode](ctx, r.cache, cacheKey); ok {
		r.log.Debugw("cache hit", "key", cacheKey)
		return p
	}
	return nil
}

// DeleteCache drops every cached code, renames make per key eviction unreliable
func (r *promoRepository) DeleteCache(ctx context.Context) {
	r.cache.DeleteByPrefix(ctx, cache.PrefixPromoCode)
}
