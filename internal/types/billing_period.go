package types

import (
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the cadence a tier is purchased for
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

const (
	monthlyPeriodDays = 30
	yearlyPeriodDays  = 365
)

func (b BillingPeriod) String() string {
	return string(b)
}

func (b BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BillingPeriodMonthly,
		BillingPeriodYearly,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be monthly or yearly").
			WithReportableDetails(map[string]any{
				"allowed":        allowed,
				"billing_period": b,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Days returns the number of days one paid period covers
func (b BillingPeriod) Days() int {
	if b == BillingPeriodYearly {
		return yearlyPeriodDays
	}
	return monthlyPeriodDays
}

// NextPeriodEnd returns the end of a period starting at start
func (b BillingPeriod) NextPeriodEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, b.Days())
}
