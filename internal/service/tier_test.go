package service

import (
	"testing"

	"github.com/rumahku/billing/internal/api/dto"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type TierServiceSuite struct {
	testutil.BaseServiceTestSuite
	service TierService
}

func TestTierService(t *testing.T) {
	suite.Run(t, new(TierServiceSuite))
}

func (s *TierServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewTierService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *TierServiceSuite) TestListTiers() {
	resp, err := s.service.ListTiers(s.GetContext())
	s.Require().NoError(err)

	ids := lo.Map(resp.Items, func(t *dto.TierResponse, _ int) string { return t.ID })
	s.Equal([]string{"free", "family", "premium"}, ids)
	s.Equal(lo.ToPtr(3), resp.Pagination.Total)
	s.False(resp.Pagination.HasMore)
}

func (s *TierServiceSuite) TestGetTierPrice() {
	price, err := s.service.GetTierPrice(s.GetContext(), "FAMILY", types.BillingPeriodYearly)
	s.Require().NoError(err)
	s.Equal("family", price.TierID)
	s.Equal(int64(200000), price.Amount)
	s.Equal("IDR", price.Currency)

	_, err = s.service.GetTierPrice(s.GetContext(), "family", "")
	s.True(ierr.IsValidation(err))
}

func (s *TierServiceSuite) TestUpsertTier() {
	created, err := s.service.UpsertTier(s.GetAdminContext(), &dto.UpsertTierRequest{
		ID:           "Business",
		Name:         "Business",
		MonthlyPrice: 250000,
		YearlyPrice:  2500000,
		MaxMembers:   20,
		SortOrder:    3,
		Features:     []any{"tasks", "budgeting"},
	})
	s.Require().NoError(err)
	s.Equal("business", created.ID)
	s.True(created.HasFeature("budgeting"))

	got, err := s.service.GetTier(s.GetContext(), "business")
	s.Require().NoError(err)
	s.Equal(int64(250000), got.MonthlyPrice)

	updated, err := s.service.UpsertTier(s.GetAdminContext(), &dto.UpsertTierRequest{
		ID:           "business",
		Name:         "Business",
		MonthlyPrice: 200000,
		YearlyPrice:  2000000,
	})
	s.Require().NoError(err)
	s.Equal(created.CreatedAt, updated.CreatedAt)

	price, err := s.service.GetTierPrice(s.GetContext(), "business", types.BillingPeriodMonthly)
	s.Require().NoError(err)
	s.Equal(int64(200000), price.Amount)

	s.Run("bad feature entry", func() {
		_, err := s.service.UpsertTier(s.GetAdminContext(), &dto.UpsertTierRequest{
			ID:       "broken",
			Name:     "Broken",
			Features: []any{"tasks", 42},
		})
		s.True(ierr.IsValidation(err), "got %v", err)
	})

	s.Run("negative price", func() {
		_, err := s.service.UpsertTier(s.GetAdminContext(), &dto.UpsertTierRequest{
			ID:           "broken",
			Name:         "Broken",
			MonthlyPrice: -1,
		})
		s.True(ierr.IsValidation(err))
	})
}

func (s *TierServiceSuite) TestSeedCatalogIsIdempotent() {
	s.Require().NoError(s.service.SeedCatalog(s.GetContext()))
	s.Require().NoError(s.service.SeedCatalog(s.GetContext()))

	resp, err := s.service.ListTiers(s.GetContext())
	s.Require().NoError(err)
	s.Len(resp.Items, 3)
}
