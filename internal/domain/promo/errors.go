package promo

import (
	"fmt"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
)

// RejectionError carries the reason a promo code was refused
type RejectionError struct {
	Code      types.PromoRejectionCode `json:"code"`
	PromoCode string                   `json:"promo_code"`
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("promo code %q rejected: %s", e.PromoCode, e.Code)
}

// NewRejectionError builds the user facing error for a rejection code
func NewRejectionError(code types.PromoRejectionCode, promoCode string) error {
	return ierr.WithError(&RejectionError{Code: code, PromoCode: promoCode}).
		WithHint(code.Message()).
		WithReportableDetails(map[string]any{
			"code":       code,
			"promo_code": promoCode,
		}).
		Mark(ierr.ErrPromoRejected)
}

// RejectionCodeFromError extracts the rejection code from an error chain
func RejectionCodeFromError(err error) (types.PromoRejectionCode, bool) {
	var rejection *RejectionError
	if ierr.As(err, &rejection) {
		return rejection.Code, true
	}
	return "", false
}
