package dto

import (
	"context"
	"time"

	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreatePromoCodeRequest represents the request to create a new promo code
type CreatePromoCodeRequest struct {
	Code          string             `json:"code" validate:"required,promo_code"`
	Description   string             `json:"description,omitempty" validate:"omitempty,max=500"`
	DiscountType  types.DiscountType `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	// IsActive defaults to true
	IsActive        *bool      `json:"is_active,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	MaxUses         *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	ApplicableTiers []string   `json:"applicable_tiers,omitempty"`
}

// UpdatePromoCodeRequest represents the request to update an existing promo
// code. The code itself and its usage counter cannot be changed.
type UpdatePromoCodeRequest struct {
	Description     *string             `json:"description,omitempty" validate:"omitempty,max=500"`
	DiscountType    *types.DiscountType `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue   *decimal.Decimal    `json:"discount_value,omitempty"`
	IsActive        *bool               `json:"is_active,omitempty"`
	ValidFrom       *time.Time          `json:"valid_from,omitempty"`
	ValidUntil      *time.Time          `json:"valid_until,omitempty"`
	MaxUses         *int                `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	ApplicableTiers *[]string           `json:"applicable_tiers,omitempty"`
	// ClearValidFrom, ClearValidUntil and ClearMaxUses reopen a bound
	ClearValidFrom  bool `json:"clear_valid_from,omitempty"`
	ClearValidUntil bool `json:"clear_valid_until,omitempty"`
	ClearMaxUses    bool `json:"clear_max_uses,omitempty"`
}

func (r *CreatePromoCodeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		return ierr.NewError("valid_until must not be before valid_from").
			WithHint("Please provide a valid date range").
			Mark(ierr.ErrValidation)
	}

	return nil
}

func (r *CreatePromoCodeRequest) ToPromoCode(ctx context.Context) *promo.PromoCode {
	return &promo.PromoCode{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMO_CODE),
		Code:            promo.NormalizeCode(r.Code),
		Description:     r.Description,
		DiscountType:    r.DiscountType,
		DiscountValue:   r.DiscountValue,
		IsActive:        lo.FromPtrOr(r.IsActive, true),
		ValidFrom:       toUTC(r.ValidFrom),
		ValidUntil:      toUTC(r.ValidUntil),
		MaxUses:         r.MaxUses,
		ApplicableTiers: promo.NormalizeTiers(r.ApplicableTiers),
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

func (r *UpdatePromoCodeRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Apply copies the set fields onto p, p.Validate decides whether the
// combination is still consistent
func (r *UpdatePromoCodeRequest) Apply(ctx context.Context, p *promo.PromoCode) {
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.DiscountType != nil {
		p.DiscountType = *r.DiscountType
	}
	if r.DiscountValue != nil {
		p.DiscountValue = *r.DiscountValue
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	if r.ValidFrom != nil {
		p.ValidFrom = toUTC(r.ValidFrom)
	}
	if r.ValidUntil != nil {
		p.ValidUntil = toUTC(r.ValidUntil)
	}
	if r.MaxUses != nil {
		p.MaxUses = r.MaxUses
	}
	if r.ApplicableTiers != nil {
		p.ApplicableTiers = promo.NormalizeTiers(*r.ApplicableTiers)
	}
	if r.ClearValidFrom {
		p.ValidFrom = nil
	}
	if r.ClearValidUntil {
		p.ValidUntil = nil
	}
	if r.ClearMaxUses {
		p.MaxUses = nil
	}

	p.Touch(ctx, time.Now())
}

// PromoCodeResponse represents the response for promo code data
type PromoCodeResponse struct {
	*promo.PromoCode
	RemainingUses *int `json:"remaining_uses,omitempty"`
	IsExpired     bool `json:"is_expired"`
}

func NewPromoCodeResponse(p *promo.PromoCode, now time.Time) *PromoCodeResponse {
	return &PromoCodeResponse{
		PromoCode:     p,
		RemainingUses: p.RemainingUses(),
		IsExpired:     p.IsExpired(now),
	}
}

// ListPromoCodesResponse represents the response for listing promo codes
type ListPromoCodesResponse = types.ListResponse[*PromoCodeResponse]

type ListPromoRedemptionsResponse = types.ListResponse[*promo.Redemption]

type PromoStatsResponse struct {
	*promo.Stats
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(t.UTC())
}
