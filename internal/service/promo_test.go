package service

import (
	"testing"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PromoServiceSuite struct {
	testutil.BaseServiceTestSuite
	service   PromoService
	promoRepo *testutil.InMemoryPromoStore
}

func TestPromoService(t *testing.T) {
	suite.Run(t, new(PromoServiceSuite))
}

func (s *PromoServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPromoService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.promoRepo = s.GetStores().PromoRepo.(*testutil.InMemoryPromoStore)
}

func (s *PromoServiceSuite) create(req dto.CreatePromoCodeRequest) *dto.PromoCodeResponse {
	resp, err := s.service.CreatePromoCode(s.GetAdminContext(), &req)
	s.Require().NoError(err)
	return resp
}

func (s *PromoServiceSuite) TestCreatePromoCode() {
	s.Run("normalizes code and tiers", func() {
		resp := s.create(dto.CreatePromoCodeRequest{
			Code:            "hemat50",
			DiscountType:    types.DiscountTypePercentage,
			DiscountValue:   decimal.NewFromInt(50),
			MaxUses:         lo.ToPtr(100),
			ApplicableTiers: []string{" Premium", "family", "family"},
		})

		s.Equal("HEMAT50", resp.Code)
		s.True(resp.IsActive)
		s.Equal(0, resp.CurrentUses)
		s.Equal([]string{"premium", "family"}, resp.ApplicableTiers)
		s.Equal(lo.ToPtr(100), resp.RemainingUses)
		s.False(resp.IsExpired)
	})

	s.Run("duplicate code differing only in case", func() {
		_, err := s.service.CreatePromoCode(s.GetAdminContext(), &dto.CreatePromoCodeRequest{
			Code:          "HeMaT50",
			DiscountType:  types.DiscountTypeFixed,
			DiscountValue: decimal.NewFromInt(1000),
		})
		s.True(ierr.IsAlreadyExists(err), "got %v", err)
	})

	s.Run("inactive on creation", func() {
		resp := s.create(dto.CreatePromoCodeRequest{
			Code:          "LATER",
			DiscountType:  types.DiscountTypeFixed,
			DiscountValue: decimal.NewFromInt(5000),
			IsActive:      lo.ToPtr(false),
		})
		s.False(resp.IsActive)
	})

	invalid := []struct {
		name string
		req  dto.CreatePromoCodeRequest
	}{
		{"missing code", dto.CreatePromoCodeRequest{DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1)}},
		{"code with spaces", dto.CreatePromoCodeRequest{Code: "HE MAT", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1)}},
		{"unknown discount type", dto.CreatePromoCodeRequest{Code: "BAD", DiscountType: "bogo", DiscountValue: decimal.NewFromInt(1)}},
		{"percentage above 100", dto.CreatePromoCodeRequest{Code: "TOOMUCH", DiscountType: types.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(150)}},
		{"negative value", dto.CreatePromoCodeRequest{Code: "NEG", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(-10)}},
		{"zero max uses", dto.CreatePromoCodeRequest{Code: "ZERO", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1), MaxUses: lo.ToPtr(0)}},
		{"window reversed", dto.CreatePromoCodeRequest{
			Code:          "BACKWARDS",
			DiscountType:  types.DiscountTypeFixed,
			DiscountValue: decimal.NewFromInt(1),
			ValidFrom:     lo.ToPtr(time.Now().Add(time.Hour)),
			ValidUntil:    lo.ToPtr(time.Now()),
		}},
	}
	for _, tt := range invalid {
		s.Run(tt.name, func() {
			_, err := s.service.CreatePromoCode(s.GetAdminContext(), &tt.req)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}
}

func (s *PromoServiceSuite) TestUpdatePromoCode() {
	created := s.create(dto.CreatePromoCodeRequest{
		Code:          "UPDATE",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxUses:       lo.ToPtr(10),
		ValidUntil:    lo.ToPtr(time.Now().Add(24 * time.Hour)),
	})

	// a use recorded between read and write must survive the update
	_, err := s.promoRepo.Redeem(s.GetContext(), &promo.Redemption{
		ID:          types.GenerateUUID(),
		PromoCodeID: created.ID,
		Code:        created.Code,
		RedeemedAt:  time.Now().UTC(),
	})
	s.Require().NoError(err)

	updated, err := s.service.UpdatePromoCode(s.GetAdminContext(), created.ID, &dto.UpdatePromoCodeRequest{
		Description:     lo.ToPtr("ten percent"),
		DiscountValue:   lo.ToPtr(decimal.NewFromInt(15)),
		ClearValidUntil: true,
		ClearMaxUses:    true,
	})
	s.Require().NoError(err)
	s.Equal("ten percent", updated.Description)
	s.True(updated.DiscountValue.Equal(decimal.NewFromInt(15)))
	s.Nil(updated.ValidUntil)
	s.Nil(updated.MaxUses)
	s.Nil(updated.RemainingUses)

	stored, err := s.promoRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.CurrentUses)

	s.Run("invalid combination", func() {
		_, err := s.service.UpdatePromoCode(s.GetAdminContext(), created.ID, &dto.UpdatePromoCodeRequest{
			DiscountValue: lo.ToPtr(decimal.NewFromInt(101)),
		})
		s.True(ierr.IsValidation(err), "got %v", err)
	})

	s.Run("unknown id", func() {
		_, err := s.service.UpdatePromoCode(s.GetAdminContext(), "promo_missing", &dto.UpdatePromoCodeRequest{})
		s.True(ierr.IsNotFound(err))
	})
}

func (s *PromoServiceSuite) TestToggleAndDelete() {
	created := s.create(dto.CreatePromoCodeRequest{
		Code:          "TOGGLE",
		DiscountType:  types.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(1000),
	})

	toggled, err := s.service.TogglePromoCode(s.GetAdminContext(), created.ID)
	s.Require().NoError(err)
	s.False(toggled.IsActive)

	toggled, err = s.service.TogglePromoCode(s.GetAdminContext(), created.ID)
	s.Require().NoError(err)
	s.True(toggled.IsActive)

	s.NoError(s.service.DeletePromoCode(s.GetAdminContext(), created.ID))

	_, err = s.service.GetPromoCode(s.GetAdminContext(), created.ID)
	s.True(ierr.IsNotFound(err))

	_, err = s.promoRepo.GetByCode(s.GetContext(), "TOGGLE")
	s.True(ierr.IsNotFound(err))

	s.True(ierr.IsNotFound(s.service.DeletePromoCode(s.GetAdminContext(), created.ID)))

	// the code is free again once archived
	s.create(dto.CreatePromoCodeRequest{
		Code:          "TOGGLE",
		DiscountType:  types.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(2000),
	})
}

func (s *PromoServiceSuite) TestListPromoCodes() {
	s.create(dto.CreatePromoCodeRequest{Code: "ALPHA", Description: "launch", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000)})
	s.create(dto.CreatePromoCodeRequest{Code: "BETA", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000), IsActive: lo.ToPtr(false)})
	s.create(dto.CreatePromoCodeRequest{Code: "GAMMA", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000), ApplicableTiers: []string{"family"}})

	tests := []struct {
		name   string
		filter *types.PromoCodeFilter
		want   []string
	}{
		{"all", nil, []string{"ALPHA", "BETA", "GAMMA"}},
		{"active only", &types.PromoCodeFilter{IsActive: lo.ToPtr(true)}, []string{"ALPHA", "GAMMA"}},
		{"search by code", &types.PromoCodeFilter{Search: "bet"}, []string{"BETA"}},
		{"search by description", &types.PromoCodeFilter{Search: "LAUNCH"}, []string{"ALPHA"}},
		{"by tier", &types.PromoCodeFilter{TierID: "premium"}, []string{"ALPHA", "BETA"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.ListPromoCodes(s.GetAdminContext(), tt.filter)
			s.Require().NoError(err)
			codes := lo.Map(resp.Items, func(p *dto.PromoCodeResponse, _ int) string { return p.Code })
			s.ElementsMatch(tt.want, codes)
			s.Equal(lo.ToPtr(len(tt.want)), resp.Pagination.Total)
		})
	}
}

func (s *PromoServiceSuite) TestRedemptionsAndStats() {
	past := time.Now().Add(-time.Hour)
	used := s.create(dto.CreatePromoCodeRequest{Code: "USED", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000), MaxUses: lo.ToPtr(5)})
	s.create(dto.CreatePromoCodeRequest{Code: "OFF", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000), IsActive: lo.ToPtr(false)})
	s.create(dto.CreatePromoCodeRequest{Code: "GONE", DiscountType: types.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1000), ValidUntil: &past})

	for i := 0; i < 3; i++ {
		_, err := s.promoRepo.Redeem(s.GetContext(), &promo.Redemption{
			ID:          types.GenerateUUID(),
			PromoCodeID: used.ID,
			Code:        used.Code,
			FamilyID:    testutil.DefaultFamilyID,
			RedeemedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		s.Require().NoError(err)
	}

	redemptions, err := s.service.ListRedemptions(s.GetAdminContext(), used.ID, nil)
	s.Require().NoError(err)
	s.Len(redemptions.Items, 3)
	s.Equal(lo.ToPtr(3), redemptions.Pagination.Total)
	s.True(redemptions.Items[0].RedeemedAt.After(redemptions.Items[2].RedeemedAt))

	stats, err := s.service.GetStats(s.GetAdminContext())
	s.Require().NoError(err)
	s.Equal(3, stats.TotalCodes)
	s.Equal(2, stats.ActiveCodes)
	s.Equal(3, stats.TotalUses)
	s.Equal(1, stats.ExpiredCodes)
}
