package tier

import (
	"fmt"
	"strings"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// Tier is one purchasable plan of the catalog.
// Prices are integer amounts in the smallest currency unit.
type Tier struct {
	ID           string   `json:"id" db:"id"`
	Name         string   `json:"name" db:"name"`
	Description  string   `json:"description" db:"description"`
	MonthlyPrice int64    `json:"monthly_price" db:"monthly_price"`
	YearlyPrice  int64    `json:"yearly_price" db:"yearly_price"`
	Currency     string   `json:"currency" db:"currency"`
	MaxMembers   int      `json:"max_members" db:"max_members"`
	SortOrder    int      `json:"sort_order" db:"sort_order"`
	Features     []string `json:"features" db:"-"`
	types.BaseModel
}

// PriceFor returns the base amount for a billing period
func (t *Tier) PriceFor(period types.BillingPeriod) (int64, error) {
	if err := period.Validate(); err != nil {
		return 0, err
	}
	if period == types.BillingPeriodYearly {
		return t.YearlyPrice, nil
	}
	return t.MonthlyPrice, nil
}

// IsFree reports whether the tier never needs a payment
func (t *Tier) IsFree() bool {
	return t.MonthlyPrice == 0 && t.YearlyPrice == 0
}

// HasFeature reports whether the tier unlocks the given feature key
func (t *Tier) HasFeature(feature string) bool {
	return lo.Contains(t.Features, feature)
}

func (t *Tier) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ierr.NewError("tier id is required").
			WithHint("Tier id is required").
			Mark(ierr.ErrValidation)
	}
	if t.MonthlyPrice < 0 || t.YearlyPrice < 0 {
		return ierr.NewError("tier price must not be negative").
			WithHint("Tier prices must not be negative").
			WithReportableDetails(map[string]any{
				"tier_id":       t.ID,
				"monthly_price": t.MonthlyPrice,
				"yearly_price":  t.YearlyPrice,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ParseFeatures turns a loosely typed feature list into feature keys.
// Every entry must be a non blank string, duplicates are dropped.
func ParseFeatures(raw []any) ([]string, error) {
	features := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, ierr.NewError(fmt.Sprintf("feature at index %d is %T, not a string", i, item)).
				WithHint("Tier features must be a list of strings").
				WithReportableDetails(map[string]any{
					"index": i,
				}).
				Mark(ierr.ErrValidation)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, ierr.NewError(fmt.Sprintf("feature at index %d is blank", i)).
				WithHint("Tier features must not be blank").
				WithReportableDetails(map[string]any{
					"index": i,
				}).
				Mark(ierr.ErrValidation)
		}
		features = append(features, s)
	}
	return lo.Uniq(features), nil
}
