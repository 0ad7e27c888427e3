package tier

import (
	"time"

	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
)

// FromConfig builds catalog tiers from configuration rows, validating
// feature lists on the way in.
func FromConfig(rows []config.TierConfig, currency string) ([]*Tier, error) {
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(rows))
	tiers := make([]*Tier, 0, len(rows))

	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			return nil, ierr.NewError("duplicate tier id in catalog").
				WithHintf("Tier %s is defined more than once", row.ID).
				Mark(ierr.ErrValidation)
		}
		seen[row.ID] = struct{}{}

		features, err := ParseFeatures(row.Features)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Tier %s has an invalid feature list", row.ID).
				Mark(ierr.ErrValidation)
		}

		t := &Tier{
			ID:           row.ID,
			Name:         row.Name,
			Description:  row.Description,
			MonthlyPrice: row.MonthlyPrice,
			YearlyPrice:  row.YearlyPrice,
			Currency:     currency,
			MaxMembers:   row.MaxMembers,
			SortOrder:    row.SortOrder,
			Features:     features,
			BaseModel: types.BaseModel{
				Status:    types.StatusPublished,
				CreatedAt: now,
				UpdatedAt: now,
				CreatedBy: types.SystemUserID,
				UpdatedBy: types.SystemUserID,
			},
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}

	return tiers, nil
}
