package types

import (
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

// PromoRejectionCode is the reason a promo code cannot be applied
type PromoRejectionCode string

// Codes are listed in evaluation priority order
const (
	PromoRejectionNotFound          PromoRejectionCode = "PROMO_NOT_FOUND"
	PromoRejectionInactive          PromoRejectionCode = "PROMO_INACTIVE"
	PromoRejectionNotYetValid       PromoRejectionCode = "PROMO_NOT_YET_VALID"
	PromoRejectionExpired           PromoRejectionCode = "PROMO_EXPIRED"
	PromoRejectionUsageExceeded     PromoRejectionCode = "PROMO_USAGE_EXCEEDED"
	PromoRejectionTierNotApplicable PromoRejectionCode = "PROMO_TIER_NOT_APPLICABLE"
)

var promoRejectionMessages = map[PromoRejectionCode]string{
	PromoRejectionNotFound:          "Promo code not found",
	PromoRejectionInactive:          "Promo code is no longer active",
	PromoRejectionNotYetValid:       "Promo code is not valid yet",
	PromoRejectionExpired:           "Promo code has expired",
	PromoRejectionUsageExceeded:     "Promo code has reached its usage limit",
	PromoRejectionTierNotApplicable: "Promo code is not valid for the selected plan",
}

func (c PromoRejectionCode) String() string {
	return string(c)
}

func (c PromoRejectionCode) Validate() error {
	allowed := lo.Keys(promoRejectionMessages)
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid promo rejection code").
			WithHint("Please provide a valid promo rejection code").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"code":    c,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Message returns the end user facing text for the code
func (c PromoRejectionCode) Message() string {
	if msg, ok := promoRejectionMessages[c]; ok {
		return msg
	}
	return "Promo code cannot be applied"
}
