package types

import (
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_MAX_LIMIT     = 1000
)

// BaseFilter defines common pagination capabilities
type BaseFilter interface {
	GetLimit() int
	GetOffset() int
	Validate() error
	IsUnlimited() bool
}

// QueryFilter represents a generic paginated query
type QueryFilter struct {
	Limit  *int `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset *int `json:"offset,omitempty" form:"offset" validate:"omitempty,min=0"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
	}
}

// NewNoLimitQueryFilter returns a filter that does not paginate
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{}
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f *QueryFilter) IsUnlimited() bool {
	return f == nil || f.Limit == nil
}

func (f *QueryFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > FILTER_MAX_LIMIT) {
		return ierr.NewError("invalid limit").
			WithHintf("Limit must be between 1 and %d", FILTER_MAX_LIMIT).
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("invalid offset").
			WithHint("Offset must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PromoCodeFilter narrows admin promo code listings
type PromoCodeFilter struct {
	*QueryFilter
	IsActive *bool  `json:"is_active,omitempty" form:"is_active"`
	Search   string `json:"search,omitempty" form:"search"`
	TierID   string `json:"tier_id,omitempty" form:"tier_id"`
}

func NewPromoCodeFilter() *PromoCodeFilter {
	return &PromoCodeFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *PromoCodeFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.QueryFilter.Validate()
}

// PaymentTransactionFilter narrows payment transaction listings
type PaymentTransactionFilter struct {
	*QueryFilter
	FamilyID string          `json:"family_id,omitempty" form:"family_id"`
	Statuses []PaymentStatus `json:"statuses,omitempty" form:"statuses"`
}

func NewPaymentTransactionFilter() *PaymentTransactionFilter {
	return &PaymentTransactionFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *PaymentTransactionFilter) Validate() error {
	if f == nil {
		return nil
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return f.QueryFilter.Validate()
}

// SubscriptionFilter narrows subscription listings
type SubscriptionFilter struct {
	*QueryFilter
	Statuses     []SubscriptionStatus `json:"statuses,omitempty" form:"statuses"`
	TierID       string               `json:"tier_id,omitempty" form:"tier_id"`
	EndingBefore *time.Time           `json:"ending_before,omitempty" form:"ending_before"`
}

func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{QueryFilter: NewNoLimitQueryFilter()}
}

func (f *SubscriptionFilter) Validate() error {
	if f == nil {
		return nil
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return f.QueryFilter.Validate()
}
