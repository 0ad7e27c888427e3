package dto

import (
	"github.com/rumahku/billing/internal/domain/pricing"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
	"github.com/shopspring/decimal"
)

// QuoteRequest asks for the price of a tier with an optional promo code
type QuoteRequest struct {
	TierID        string              `json:"tier_id" form:"tier_id" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period" form:"billing_period" validate:"required"`
	PromoCode     string              `json:"promo_code,omitempty" form:"promo_code" validate:"omitempty,max=64"`
}

func (r *QuoteRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.BillingPeriod.Validate()
}

type QuoteResponse struct {
	*pricing.Quote
}

// ValidatePromoRequest checks a code against a tier before checkout
type ValidatePromoRequest struct {
	Code          string              `json:"code" validate:"required,max=64"`
	TierID        string              `json:"tier_id" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period,omitempty"`
}

func (r *ValidatePromoRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.BillingPeriod == "" {
		r.BillingPeriod = types.BillingPeriodMonthly
	}
	return r.BillingPeriod.Validate()
}

// ValidatePromoResponse reports a rejection as data, store failures are errors
type ValidatePromoResponse struct {
	Valid          bool                     `json:"valid"`
	Code           string                   `json:"code"`
	DiscountType   types.DiscountType       `json:"discount_type,omitempty"`
	DiscountValue  *decimal.Decimal         `json:"discount_value,omitempty"`
	DiscountAmount int64                    `json:"discount_amount"`
	RejectionCode  types.PromoRejectionCode `json:"rejection_code,omitempty"`
	Message        string                   `json:"message,omitempty"`
}
