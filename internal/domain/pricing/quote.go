package pricing

import (
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/types"
)

// ValidatedPromo is a promo code that passed every redeemability check for a
// specific tier at a specific instant
type ValidatedPromo struct {
	Code string `json:"code"`
	// DiscountAmount is the discount against the base price it was validated for
	DiscountAmount int64            `json:"discount_amount"`
	Promo          *promo.PromoCode `json:"-"`
}

// NewValidatedPromo binds a redeemable code to the base amount it will discount
func NewValidatedPromo(p *promo.PromoCode, baseAmount int64) *ValidatedPromo {
	return &ValidatedPromo{
		Code:           p.Code,
		DiscountAmount: p.CalculateDiscount(baseAmount),
		Promo:          p,
	}
}

// Quote is the price a family would pay for a tier and period
type Quote struct {
	TierID         string              `json:"tier_id"`
	BillingPeriod  types.BillingPeriod `json:"billing_period"`
	Currency       string              `json:"currency"`
	BaseAmount     int64               `json:"base_amount"`
	DiscountAmount int64               `json:"discount_amount"`
	FinalAmount    int64               `json:"final_amount"`
	AppliedCode    *string             `json:"applied_code,omitempty"`
}

// Breakdown is the amount split produced by ComputeQuote
type Breakdown struct {
	BaseAmount     int64
	DiscountAmount int64
	FinalAmount    int64
}

// ComputeQuote applies an optional validated promo to a base amount.
// It is pure: the same inputs always give the same breakdown, and
// 0 <= DiscountAmount <= BaseAmount holds for every non negative base.
func ComputeQuote(baseAmount int64, validated *ValidatedPromo) Breakdown {
	if baseAmount < 0 {
		baseAmount = 0
	}

	var discount int64
	if validated != nil && validated.Promo != nil {
		discount = validated.Promo.CalculateDiscount(baseAmount)
	}

	return Breakdown{
		BaseAmount:     baseAmount,
		DiscountAmount: discount,
		FinalAmount:    baseAmount - discount,
	}
}

// NewQuote assembles a Quote from a breakdown
func NewQuote(tierID string, period types.BillingPeriod, currency string, b Breakdown, validated *ValidatedPromo) *Quote {
	q := &Quote{
		TierID:         tierID,
		BillingPeriod:  period,
		Currency:       currency,
		BaseAmount:     b.BaseAmount,
		DiscountAmount: b.DiscountAmount,
		FinalAmount:    b.FinalAmount,
	}
	if validated != nil && validated.Promo != nil {
		code := validated.Code
		q.AppliedCode = &code
	}
	return q
}

// IsFree reports whether the checkout needs no payment at all
func (q *Quote) IsFree() bool {
	return q.FinalAmount == 0
}
