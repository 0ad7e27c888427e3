package promo

import (
	"strings"
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PromoCode is a discount offer redeemable at checkout
type PromoCode struct {
	ID            string             `json:"id" db:"id"`
	Code          string             `json:"code" db:"code"`
	Description   string             `json:"description" db:"description"`
	DiscountType  types.DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value" db:"discount_value"`
	IsActive      bool               `json:"is_active" db:"is_active"`
	// ValidFrom and ValidUntil are inclusive, nil means unbounded
	ValidFrom  *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	// MaxUses nil means unlimited
	MaxUses     *int `json:"max_uses,omitempty" db:"max_uses"`
	CurrentUses int  `json:"current_uses" db:"current_uses"`
	// ApplicableTiers empty means every tier
	ApplicableTiers []string `json:"applicable_tiers,omitempty" db:"-"`
	types.BaseModel
}

// NormalizeCode is the canonical form codes are stored and compared in
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeTiers lowercases, trims and deduplicates tier ids
func NormalizeTiers(tiers []string) []string {
	normalized := lo.FilterMap(tiers, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	return lo.Uniq(normalized)
}

// Check evaluates whether the code is redeemable for tierID at now.
// Rejections are evaluated in a fixed priority order and only the first one
// is reported: expired, inactive, not yet valid, usage exceeded, tier not
// applicable. ok is true when the code can be applied.
func (p *PromoCode) Check(tierID string, now time.Time) (code types.PromoRejectionCode, ok bool) {
	if p == nil {
		return types.PromoRejectionNotFound, false
	}

	// A closed window is permanent, so it is reported even for inactive codes
	if p.IsExpired(now) {
		return types.PromoRejectionExpired, false
	}

	if !p.IsActive {
		return types.PromoRejectionInactive, false
	}

	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return types.PromoRejectionNotYetValid, false
	}

	if p.IsExhausted() {
		return types.PromoRejectionUsageExceeded, false
	}

	if !p.AppliesTo(tierID) {
		return types.PromoRejectionTierNotApplicable, false
	}

	return "", true
}

// IsExhausted reports whether the usage cap has been reached
func (p *PromoCode) IsExhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// IsExpired reports whether the activation window has closed at now
func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

// AppliesTo reports whether the code may be used for tierID
func (p *PromoCode) AppliesTo(tierID string) bool {
	if len(p.ApplicableTiers) == 0 {
		return true
	}
	return lo.Contains(p.ApplicableTiers, strings.ToLower(strings.TrimSpace(tierID)))
}

// RemainingUses returns nil for unlimited codes
func (p *PromoCode) RemainingUses() *int {
	if p.MaxUses == nil {
		return nil
	}
	return lo.ToPtr(max(*p.MaxUses-p.CurrentUses, 0))
}

// CalculateDiscount returns the discount for baseAmount in whole currency
// units. Percentages round half up, the result never exceeds baseAmount.
func (p *PromoCode) CalculateDiscount(baseAmount int64) int64 {
	if p == nil || baseAmount <= 0 {
		return 0
	}

	var discount decimal.Decimal
	switch p.DiscountType {
	case types.DiscountTypePercentage:
		discount = decimal.NewFromInt(baseAmount).Mul(p.DiscountValue).Div(hundred)
	case types.DiscountTypeFixed:
		discount = p.DiscountValue
	default:
		return 0
	}

	// Round rounds half away from zero which is half up for non negative values
	discount = discount.Round(0)
	if discount.IsNegative() {
		return 0
	}

	base := decimal.NewFromInt(baseAmount)
	if discount.GreaterThan(base) {
		return baseAmount
	}
	return discount.IntPart()
}

func (p *PromoCode) Validate() error {
	if p.Code == "" {
		return ierr.NewError("promo code is required").
			WithHint("Promo code is required").
			Mark(ierr.ErrValidation)
	}

	if err := p.DiscountType.Validate(); err != nil {
		return err
	}

	if p.DiscountValue.IsNegative() {
		return ierr.NewError("discount value must not be negative").
			WithHint("Discount value must not be negative").
			WithReportableDetails(map[string]any{
				"discount_value": p.DiscountValue.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if p.DiscountType == types.DiscountTypePercentage && p.DiscountValue.GreaterThan(hundred) {
		return ierr.NewError("percentage discount above 100").
			WithHint("Percentage discount must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"discount_value": p.DiscountValue.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if p.ValidFrom != nil && p.ValidUntil != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return ierr.NewError("valid_until before valid_from").
			WithHint("The end of the validity window must not be before its start").
			Mark(ierr.ErrValidation)
	}

	if p.MaxUses != nil && *p.MaxUses < 0 {
		return ierr.NewError("max uses must not be negative").
			WithHint("Maximum uses must not be negative").
			Mark(ierr.ErrValidation)
	}

	if p.CurrentUses < 0 {
		return ierr.NewError("current uses must not be negative").
			WithHint("Current uses must not be negative").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// Redemption records one successful use of a promo code
type Redemption struct {
	ID             string    `json:"id" db:"id"`
	PromoCodeID    string    `json:"promo_code_id" db:"promo_code_id"`
	Code           string    `json:"code" db:"code"`
	FamilyID       string    `json:"family_id" db:"family_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	TierID         string    `json:"tier_id" db:"tier_id"`
	DiscountAmount int64     `json:"discount_amount" db:"discount_amount"`
	RedeemedAt     time.Time `json:"redeemed_at" db:"redeemed_at"`
}

// Stats summarises the promo code table for the admin dashboard
type Stats struct {
	TotalCodes   int `json:"total_codes" db:"total_codes"`
	ActiveCodes  int `json:"active_codes" db:"active_codes"`
	TotalUses    int `json:"total_uses" db:"total_uses"`
	ExpiredCodes int `json:"expired_codes" db:"expired_codes"`
}
