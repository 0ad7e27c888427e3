package dto

import (
	"context"
	"strings"

	"github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
)

// UpsertTierRequest creates or replaces a catalog tier
type UpsertTierRequest struct {
	ID           string `json:"id" validate:"required,max=50"`
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description,omitempty" validate:"omitempty,max=500"`
	MonthlyPrice int64  `json:"monthly_price" validate:"min=0"`
	YearlyPrice  int64  `json:"yearly_price" validate:"min=0"`
	MaxMembers   int    `json:"max_members" validate:"min=0"`
	SortOrder    int    `json:"sort_order"`
	// Features is kept loose so a bad entry is reported by index
	Features []any `json:"features"`
}

func (r *UpsertTierRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToTier parses the feature list and builds the catalog entry
func (r *UpsertTierRequest) ToTier(ctx context.Context, currency string) (*tier.Tier, error) {
	features, err := tier.ParseFeatures(r.Features)
	if err != nil {
		return nil, err
	}

	return &tier.Tier{
		ID:           strings.ToLower(strings.TrimSpace(r.ID)),
		Name:         r.Name,
		Description:  r.Description,
		MonthlyPrice: r.MonthlyPrice,
		YearlyPrice:  r.YearlyPrice,
		Currency:     currency,
		MaxMembers:   r.MaxMembers,
		SortOrder:    r.SortOrder,
		Features:     features,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}, nil
}

type TierResponse struct {
	*tier.Tier
}

type ListTiersResponse = types.ListResponse[*TierResponse]

// TierPriceResponse is the base price of one tier for one period
type TierPriceResponse struct {
	TierID        string              `json:"tier_id"`
	BillingPeriod types.BillingPeriod `json:"billing_period"`
	Currency      string              `json:"currency"`
	Amount        int64               `json:"amount"`
}
