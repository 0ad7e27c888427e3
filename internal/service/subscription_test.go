package service

import (
	"testing"
	"time"

	"github.com/rumahku/billing/internal/domain/subscription"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
	subRepo *testutil.InMemorySubscriptionStore
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.subRepo = s.GetStores().SubscriptionRepo.(*testutil.InMemorySubscriptionStore)
}

func (s *SubscriptionServiceSuite) seed(familyID, tierID string, status types.SubscriptionStatus, ends time.Time) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		FamilyID:           familyID,
		TierID:             tierID,
		BillingPeriod:      types.BillingPeriodMonthly,
		SubscriptionStatus: status,
		CurrentPeriodStart: ends.AddDate(0, 0, -30),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	if status == types.SubscriptionStatusTrialing {
		sub.TrialEndsAt = lo.ToPtr(ends)
	} else {
		sub.ExpiresAt = lo.ToPtr(ends)
	}
	s.Require().NoError(s.subRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *SubscriptionServiceSuite) lastAction(familyID string) types.SubscriptionAction {
	history, err := s.subRepo.ListHistory(s.GetContext(), familyID, types.NewDefaultQueryFilter())
	s.Require().NoError(err)
	s.Require().NotEmpty(history)
	return history[0].Action
}

func (s *SubscriptionServiceSuite) TestStartTrial() {
	resp, err := s.service.StartTrial(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)

	s.Equal(types.SubscriptionStatusTrialing, resp.SubscriptionStatus)
	s.Equal("premium", resp.TierID)
	s.Require().NotNil(resp.TrialEndsAt)
	s.WithinDuration(time.Now().AddDate(0, 0, 14), *resp.TrialEndsAt, time.Minute)
	s.True(resp.Trial.IsTrialing)
	s.Equal(14, resp.Trial.DaysLeft)
	s.False(resp.Trial.Urgent)
	s.Equal(types.SubscriptionActionCreated, s.lastAction(testutil.DefaultFamilyID))
	s.Equal([]string{types.WebhookEventSubscriptionCreated}, s.GetWebhookPublisher().EventNames())

	_, err = s.service.StartTrial(s.GetContext(), testutil.DefaultFamilyID)
	s.True(ierr.IsAlreadyExists(err), "got %v", err)

	_, err = s.service.StartTrial(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestActivate() {
	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Run("first payment creates the subscription", func() {
		sub, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_new",
			TierID:        "family",
			BillingPeriod: types.BillingPeriodMonthly,
			OrderID:       "ORDER-1",
			Amount:        20000,
			PaidAt:        paidAt,
		})
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
		s.Equal(paidAt.AddDate(0, 0, 30), *sub.ExpiresAt)
		s.Equal(lo.ToPtr("ORDER-1"), sub.LastOrderID)
		s.Equal(types.SubscriptionActionCreated, s.lastAction("fam_new"))
	})

	s.Run("paying during a trial ends the trial", func() {
		s.seed("fam_trial", "premium", types.SubscriptionStatusTrialing, paidAt.AddDate(0, 0, 5))

		sub, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_trial",
			TierID:        "family",
			BillingPeriod: types.BillingPeriodYearly,
			Amount:        200000,
			PaidAt:        paidAt,
		})
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
		s.Nil(sub.TrialEndsAt)
		s.Equal("family", sub.TierID)
		s.Equal(paidAt.AddDate(0, 0, 365), *sub.ExpiresAt)
		s.Equal(types.SubscriptionActionDowngraded, s.lastAction("fam_trial"))
	})

	s.Run("renewal extends from the current expiry", func() {
		current := paidAt.AddDate(0, 0, 10)
		s.seed("fam_renew", "family", types.SubscriptionStatusActive, current)

		sub, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_renew",
			TierID:        "family",
			BillingPeriod: types.BillingPeriodMonthly,
			PaidAt:        paidAt,
		})
		s.Require().NoError(err)
		s.Equal(current, sub.CurrentPeriodStart)
		s.Equal(current.AddDate(0, 0, 30), *sub.ExpiresAt)
		s.Equal(types.SubscriptionActionRenewed, s.lastAction("fam_renew"))
	})

	s.Run("upgrade starts now", func() {
		s.seed("fam_up", "family", types.SubscriptionStatusActive, paidAt.AddDate(0, 0, 10))

		sub, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_up",
			TierID:        "premium",
			BillingPeriod: types.BillingPeriodMonthly,
			PaidAt:        paidAt,
		})
		s.Require().NoError(err)
		s.Equal(paidAt, sub.CurrentPeriodStart)
		s.Equal(types.SubscriptionActionUpgraded, s.lastAction("fam_up"))

		history, err := s.subRepo.ListHistory(s.GetContext(), "fam_up", types.NewDefaultQueryFilter())
		s.Require().NoError(err)
		s.Equal(lo.ToPtr("family"), history[0].FromTier)
		s.Equal("premium", history[0].ToTier)
	})

	s.Run("expired subscription comes back", func() {
		s.seed("fam_lapsed", "family", types.SubscriptionStatusExpired, paidAt.AddDate(0, 0, -3))

		sub, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_lapsed",
			TierID:        "family",
			BillingPeriod: types.BillingPeriodMonthly,
			PaidAt:        paidAt,
		})
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
		s.Equal(paidAt.AddDate(0, 0, 30), *sub.ExpiresAt)
	})

	s.Run("unknown tier", func() {
		_, err := s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
			FamilyID:      "fam_new",
			TierID:        "platinum",
			BillingPeriod: types.BillingPeriodMonthly,
		})
		s.True(ierr.IsNotFound(err))
	})
}

func (s *SubscriptionServiceSuite) TestCancel() {
	s.seed(testutil.DefaultFamilyID, "family", types.SubscriptionStatusActive, time.Now().AddDate(0, 0, 10))

	resp, err := s.service.Cancel(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, resp.SubscriptionStatus)
	s.NotNil(resp.CancelledAt)
	s.Equal(types.SubscriptionActionCancelled, s.lastAction(testutil.DefaultFamilyID))
	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventSubscriptionCancelled)

	_, err = s.service.Cancel(s.GetContext(), testutil.DefaultFamilyID)
	s.True(ierr.IsInvalidOperation(err), "got %v", err)

	_, err = s.service.Cancel(s.GetContext(), testutil.OtherFamilyID)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestExpireDue() {
	now := time.Now().UTC()
	trialOver := s.seed("fam_a", "premium", types.SubscriptionStatusTrialing, now.Add(-time.Hour))
	lapsed := s.seed("fam_b", "family", types.SubscriptionStatusActive, now.Add(-time.Minute))
	s.seed("fam_c", "family", types.SubscriptionStatusActive, now.Add(time.Hour))
	s.seed("fam_d", "family", types.SubscriptionStatusCancelled, now.Add(-time.Hour))

	count, err := s.service.ExpireDue(s.GetContext(), now)
	s.Require().NoError(err)
	s.Equal(2, count)

	for _, id := range []string{trialOver.ID, lapsed.ID} {
		sub, err := s.subRepo.Get(s.GetContext(), id)
		s.Require().NoError(err)
		s.Equal(types.SubscriptionStatusExpired, sub.SubscriptionStatus)
	}

	live, err := s.subRepo.GetByFamily(s.GetContext(), "fam_c")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, live.SubscriptionStatus)

	count, err = s.service.ExpireDue(s.GetContext(), now)
	s.NoError(err)
	s.Zero(count)
}

func (s *SubscriptionServiceSuite) TestGetTrialStatus() {
	tests := []struct {
		name       string
		familyID   string
		ends       *time.Time
		wantTrial  bool
		wantDays   int
		wantUrgent bool
	}{
		{"no subscription", "fam_none", nil, false, 0, false},
		{"plenty of time", "fam_early", lo.ToPtr(time.Now().Add(10*24*time.Hour + time.Hour)), true, 11, false},
		{"three days left is urgent", "fam_late", lo.ToPtr(time.Now().Add(2*24*time.Hour + time.Hour)), true, 3, true},
		{"last hours", "fam_last", lo.ToPtr(time.Now().Add(time.Hour)), true, 1, true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			if tt.ends != nil {
				s.seed(tt.familyID, "premium", types.SubscriptionStatusTrialing, *tt.ends)
			}

			resp, err := s.service.GetTrialStatus(s.GetContext(), tt.familyID)
			s.Require().NoError(err)
			s.Equal(tt.wantTrial, resp.IsTrialing)
			s.Equal(tt.wantDays, resp.DaysLeft)
			s.Equal(tt.wantUrgent, resp.Urgent)
		})
	}
}

func (s *SubscriptionServiceSuite) TestGetSubscriptionAndHistory() {
	_, err := s.service.GetSubscription(s.GetContext(), testutil.DefaultFamilyID)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.StartTrial(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	_, err = s.service.Activate(s.GetContext(), ActivateSubscriptionParams{
		FamilyID:      testutil.DefaultFamilyID,
		TierID:        "premium",
		BillingPeriod: types.BillingPeriodMonthly,
		Amount:        100000,
	})
	s.Require().NoError(err)

	resp, err := s.service.GetSubscription(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Require().NotNil(resp.Tier)
	s.Equal("Premium", resp.Tier.Name)
	s.False(resp.Trial.IsTrialing)

	history, err := s.service.ListHistory(s.GetContext(), testutil.DefaultFamilyID, nil)
	s.Require().NoError(err)
	s.Require().Len(history.Items, 2)
	s.Equal(types.SubscriptionActionRenewed, history.Items[0].Action)
	s.Equal(types.SubscriptionActionCreated, history.Items[1].Action)
	s.Equal(int64(100000), history.Items[0].Amount)
}
