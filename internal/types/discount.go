package types

import (
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

// DiscountType is how a promo code reduces the base price
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (d DiscountType) String() string {
	return string(d)
}

func (d DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixed,
	}
	if !lo.Contains(allowed, d) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be percentage or fixed").
			WithReportableDetails(map[string]any{
				"allowed":       allowed,
				"discount_type": d,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
