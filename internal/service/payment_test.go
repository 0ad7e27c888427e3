package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/lock"
	"github.com/rumahku/billing/internal/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     PaymentService
	promoRepo   *testutil.InMemoryPromoStore
	paymentRepo *testutil.InMemoryPaymentStore
	subRepo     *testutil.InMemorySubscriptionStore
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPaymentService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.promoRepo = s.GetStores().PromoRepo.(*testutil.InMemoryPromoStore)
	s.paymentRepo = s.GetStores().PaymentRepo.(*testutil.InMemoryPaymentStore)
	s.subRepo = s.GetStores().SubscriptionRepo.(*testutil.InMemorySubscriptionStore)
}

func (s *PaymentServiceSuite) createPromo(code string, dt types.DiscountType, value int64, maxUses *int) *promo.PromoCode {
	p := &promo.PromoCode{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMO_CODE),
		Code:          code,
		DiscountType:  dt,
		DiscountValue: decimal.NewFromInt(value),
		IsActive:      true,
		MaxUses:       maxUses,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.promoRepo.Create(s.GetContext(), p))
	return p
}

func checkoutRequest(tierID, promoCode string) *dto.CreateCheckoutRequest {
	return &dto.CreateCheckoutRequest{
		TierID:        tierID,
		BillingPeriod: types.BillingPeriodMonthly,
		PromoCode:     promoCode,
		Customer: dto.CustomerDetails{
			Name:  "Siti Rahma",
			Email: "siti@example.com",
		},
	}
}

func familyContext(familyID string) context.Context {
	return types.SetFamilyID(testutil.SetupContext(), familyID)
}

func (s *PaymentServiceSuite) TestCreateCheckout_WithPromo() {
	p := s.createPromo("HEMAT50", types.DiscountTypePercentage, 50, lo.ToPtr(10))

	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", "hemat50"))
	s.Require().NoError(err)

	txn := resp.Transaction.Transaction
	s.Equal(types.PaymentStatusPending, txn.PaymentStatus)
	s.Equal(types.PaymentProviderMidtrans, txn.Provider)
	s.Equal(int64(100000), txn.OriginalAmount)
	s.Equal(int64(50000), txn.DiscountAmount)
	s.Equal(int64(50000), txn.Amount)
	s.Equal(lo.ToPtr("HEMAT50"), txn.PromoCode)
	s.Equal(lo.ToPtr(p.ID), txn.PromoCodeID)
	s.Equal(testutil.DefaultFamilyID, txn.FamilyID)
	s.Contains(txn.OrderID, "ORDER-")
	s.WithinDuration(time.Now().Add(24*time.Hour), txn.ExpiresAt, time.Minute)
	s.Equal("https://pay.example.com/"+txn.OrderID, resp.RedirectURL)
	s.False(resp.Reused)
	s.False(resp.Activated)

	checkouts := s.GetMidtrans().Checkouts()
	s.Require().Len(checkouts, 1)
	s.Equal(int64(50000), checkouts[0].Amount)
	s.Equal("IDR", checkouts[0].Currency)
	s.Equal("siti@example.com", checkouts[0].Customer.Email)

	stored, err := s.paymentRepo.GetByOrderID(s.GetContext(), txn.OrderID)
	s.Require().NoError(err)
	s.Equal(lo.ToPtr("ref-"+txn.OrderID), stored.GatewayReference)
	s.Equal(lo.ToPtr(p.ID), stored.PromoCodeID)

	redeemed, err := s.promoRepo.Get(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(1, redeemed.CurrentUses)
	s.Require().Len(s.promoRepo.Redemptions(), 1)
	s.Equal(txn.OrderID, s.promoRepo.Redemptions()[0].OrderID)
	s.Equal(int64(50000), s.promoRepo.Redemptions()[0].DiscountAmount)

	s.Equal([]string{types.WebhookEventPaymentCreated}, s.GetWebhookPublisher().EventNames())
}

func (s *PaymentServiceSuite) TestCreateCheckout_SelectsProvider() {
	req := checkoutRequest("family", "")
	req.Provider = types.PaymentProviderXendit

	resp, err := s.service.CreateCheckout(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal(types.PaymentProviderXendit, resp.Transaction.Provider)
	s.Len(s.GetXendit().Checkouts(), 1)
	s.Empty(s.GetMidtrans().Checkouts())

	req = checkoutRequest("family", "")
	req.Provider = types.PaymentProviderStripe
	_, err = s.service.CreateCheckout(s.GetContext(), req)
	s.True(ierr.IsValidation(err), "got %v", err)
}

func (s *PaymentServiceSuite) TestCreateCheckout_ReusesPendingCheckout() {
	p := s.createPromo("HEMAT10", types.DiscountTypePercentage, 10, nil)

	first, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", "HEMAT10"))
	s.Require().NoError(err)

	second, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", " hemat10"))
	s.Require().NoError(err)

	s.True(second.Reused)
	s.Equal(first.Transaction.OrderID, second.Transaction.OrderID)
	s.Equal(first.RedirectURL, second.RedirectURL)
	s.Len(s.GetMidtrans().Checkouts(), 1)

	stored, err := s.promoRepo.Get(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.CurrentUses)

	s.Run("different parameters start a new checkout", func() {
		third, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", "HEMAT10"))
		s.Require().NoError(err)
		s.False(third.Reused)
		s.NotEqual(first.Transaction.OrderID, third.Transaction.OrderID)
	})
}

func (s *PaymentServiceSuite) TestCreateCheckout_FullyDiscounted() {
	s.createPromo("GRATIS", types.DiscountTypePercentage, 100, lo.ToPtr(1))

	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", "GRATIS"))
	s.Require().NoError(err)

	s.True(resp.Activated)
	s.Empty(resp.RedirectURL)
	s.Equal(int64(0), resp.Quote.FinalAmount)

	txn := resp.Transaction.Transaction
	s.Equal(types.PaymentStatusSuccess, txn.PaymentStatus)
	s.Equal(types.PaymentProviderNone, txn.Provider)
	s.Equal(lo.ToPtr(PaymentMethodPromo), txn.PaymentMethod)
	s.NotNil(txn.PaidAt)
	s.Empty(s.GetMidtrans().Checkouts())

	sub, err := s.subRepo.GetByFamily(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	s.Equal("premium", sub.TierID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(lo.ToPtr(txn.OrderID), sub.LastOrderID)

	// the single use is gone
	_, err = s.service.CreateCheckout(familyContext("fam_second"), checkoutRequest("premium", "GRATIS"))
	code, ok := promo.RejectionCodeFromError(err)
	s.True(ok, "got %v", err)
	s.Equal(types.PromoRejectionUsageExceeded, code)
}

func (s *PaymentServiceSuite) TestCreateCheckout_GatewayFailure() {
	p := s.createPromo("HEMAT50", types.DiscountTypePercentage, 50, nil)
	s.GetMidtrans().CheckoutErr = ierr.NewError("snap unavailable").Mark(ierr.ErrHTTPClient)

	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", "HEMAT50"))
	s.Nil(resp)
	s.True(ierr.IsHTTPClient(err), "got %v", err)

	txns, err := s.paymentRepo.List(s.GetContext(), types.NewPaymentTransactionFilter())
	s.Require().NoError(err)
	s.Require().Len(txns, 1)
	s.Equal(types.PaymentStatusFailed, txns[0].PaymentStatus)
	s.NotNil(txns[0].FailureReason)

	// the use is consumed with the failed order
	stored, err := s.promoRepo.Get(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.CurrentUses)

	_, err = s.subRepo.GetByFamily(s.GetContext(), testutil.DefaultFamilyID)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestCreateCheckout_Guards() {
	s.Run("family required", func() {
		ctx := context.WithValue(context.Background(), types.CtxUserID, types.DefaultUserID)
		_, err := s.service.CreateCheckout(ctx, checkoutRequest("family", ""))
		s.True(ierr.IsValidation(err))
	})

	s.Run("customer required", func() {
		req := checkoutRequest("family", "")
		req.Customer = dto.CustomerDetails{}
		_, err := s.service.CreateCheckout(s.GetContext(), req)
		s.True(ierr.IsValidation(err))
	})

	s.Run("rejected promo stops checkout", func() {
		_, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", "NOPE"))
		s.True(ierr.IsPromoRejected(err))
		s.Empty(s.GetMidtrans().Checkouts())
	})

	s.Run("concurrent checkout of the same family", func() {
		key := lock.CheckoutKey(testutil.DefaultFamilyID)
		token, ok, err := s.GetLocker().TryLock(s.GetContext(), key, time.Minute)
		s.Require().NoError(err)
		s.Require().True(ok)
		defer func() { _ = s.GetLocker().Release(s.GetContext(), key, token) }()

		_, err = s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", ""))
		s.True(ierr.IsVersionConflict(err), "got %v", err)
	})
}

func (s *PaymentServiceSuite) TestConcurrentRedemptionsRespectMaxUses() {
	const maxUses = 3
	const families = 12
	p := s.createPromo("TERBATAS", types.DiscountTypePercentage, 20, lo.ToPtr(maxUses))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < families; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.CreateCheckout(familyContext(fmt.Sprintf("fam_%d", i)), checkoutRequest("premium", "TERBATAS"))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if code, ok := promo.RejectionCodeFromError(err); ok && code == types.PromoRejectionUsageExceeded {
				rejected++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(maxUses, succeeded)
	s.Equal(families-maxUses, rejected)

	stored, err := s.promoRepo.Get(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Equal(maxUses, stored.CurrentUses)
	s.Len(s.promoRepo.Redemptions(), maxUses)
}

func (s *PaymentServiceSuite) TestHandlePaymentResult_DuplicateCallbacksActivateOnce() {
	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", ""))
	s.Require().NoError(err)
	orderID := resp.Transaction.OrderID

	paidAt := time.Now().UTC().Truncate(time.Second)
	success := payment.SuccessResult{GatewayReference: "mid-123", PaidAt: paidAt, Method: "gopay"}

	txn, err := s.service.HandlePaymentResult(s.GetContext(), orderID, success)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, txn.PaymentStatus)
	s.Equal(lo.ToPtr("gopay"), txn.PaymentMethod)
	s.Equal(lo.ToPtr("mid-123"), txn.GatewayReference)

	for i := 0; i < 3; i++ {
		again, err := s.service.HandlePaymentResult(s.GetContext(), orderID, success)
		s.Require().NoError(err)
		s.Equal(types.PaymentStatusSuccess, again.PaymentStatus)
	}

	// a late failure never undoes a success
	late, err := s.service.HandlePaymentResult(s.GetContext(), orderID, payment.ErrorResult{Code: "deny"})
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, late.PaymentStatus)

	history, err := s.subRepo.ListHistory(s.GetContext(), testutil.DefaultFamilyID, types.NewDefaultQueryFilter())
	s.Require().NoError(err)
	s.Len(history, 1)

	sub, err := s.subRepo.GetByFamily(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	s.Equal(paidAt.AddDate(0, 0, 30), *sub.ExpiresAt)

	succeeded := lo.Filter(s.GetWebhookPublisher().EventNames(), func(name string, _ int) bool {
		return name == types.WebhookEventPaymentSucceeded
	})
	s.Len(succeeded, 1)
}

func (s *PaymentServiceSuite) TestHandlePaymentResult_NonSuccess() {
	tests := []struct {
		name   string
		result payment.Result
		want   types.PaymentStatus
	}{
		{"pending keeps waiting", payment.PendingResult{GatewayReference: "ref"}, types.PaymentStatusPending},
		{"error fails", payment.ErrorResult{Code: "deny", Message: "card declined"}, types.PaymentStatusFailed},
		{"expired closes", payment.ClosedResult{Reason: types.PaymentClosedExpired}, types.PaymentStatusExpired},
		{"cancelled closes", payment.ClosedResult{Reason: types.PaymentClosedCancelled}, types.PaymentStatusCancelled},
	}

	for i, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.CreateCheckout(familyContext(fmt.Sprintf("fam_result_%d", i)), checkoutRequest("family", ""))
			s.Require().NoError(err)

			txn, err := s.service.HandlePaymentResult(s.GetContext(), resp.Transaction.OrderID, tt.result)
			s.Require().NoError(err)
			s.Equal(tt.want, txn.PaymentStatus)

			_, err = s.subRepo.GetByFamily(s.GetContext(), fmt.Sprintf("fam_result_%d", i))
			s.True(ierr.IsNotFound(err))
		})
	}

	s.Run("unknown order", func() {
		_, err := s.service.HandlePaymentResult(s.GetContext(), "ORDER-missing", payment.PendingResult{})
		s.True(ierr.IsNotFound(err))
	})
}

func (s *PaymentServiceSuite) TestHandleNotification() {
	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", ""))
	s.Require().NoError(err)
	orderID := resp.Transaction.OrderID
	success := payment.SuccessResult{GatewayReference: "mid-1", PaidAt: time.Now().UTC()}

	s.Run("amount mismatch is refused", func() {
		s.GetMidtrans().Notification = &base.Notification{OrderID: orderID, Amount: 1000, Result: success}
		err := s.service.HandleNotification(s.GetContext(), types.PaymentProviderMidtrans, []byte(`{}`), nil)
		s.True(ierr.IsValidation(err), "got %v", err)

		txn, err := s.paymentRepo.GetByOrderID(s.GetContext(), orderID)
		s.Require().NoError(err)
		s.Equal(types.PaymentStatusPending, txn.PaymentStatus)
	})

	s.Run("wrong provider is refused", func() {
		s.GetXendit().Notification = &base.Notification{OrderID: orderID, Amount: 20000, Result: success}
		err := s.service.HandleNotification(s.GetContext(), types.PaymentProviderXendit, []byte(`{}`), nil)
		s.True(ierr.IsValidation(err), "got %v", err)
	})

	s.Run("bad signature", func() {
		s.GetMidtrans().Notification = nil
		s.GetMidtrans().NotificationErr = ierr.NewError("invalid signature").Mark(ierr.ErrUnauthorized)
		defer func() { s.GetMidtrans().NotificationErr = nil }()

		err := s.service.HandleNotification(s.GetContext(), types.PaymentProviderMidtrans, []byte(`{}`), nil)
		s.True(ierr.Is(err, ierr.ErrUnauthorized))
	})

	s.Run("matching notification activates", func() {
		s.GetMidtrans().Notification = &base.Notification{OrderID: orderID, Amount: 20000, Result: success}
		s.Require().NoError(s.service.HandleNotification(s.GetContext(), types.PaymentProviderMidtrans, []byte(`{}`), nil))
		s.Require().NoError(s.service.HandleNotification(s.GetContext(), types.PaymentProviderMidtrans, []byte(`{}`), nil))

		txn, err := s.paymentRepo.GetByOrderID(s.GetContext(), orderID)
		s.Require().NoError(err)
		s.Equal(types.PaymentStatusSuccess, txn.PaymentStatus)

		history, err := s.subRepo.ListHistory(s.GetContext(), testutil.DefaultFamilyID, types.NewDefaultQueryFilter())
		s.Require().NoError(err)
		s.Len(history, 1)
	})
}

func (s *PaymentServiceSuite) TestSyncPaymentStatus() {
	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", ""))
	s.Require().NoError(err)
	orderID := resp.Transaction.OrderID

	synced, err := s.service.SyncPaymentStatus(s.GetContext(), orderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, synced.PaymentStatus)

	s.GetMidtrans().Status = payment.SuccessResult{GatewayReference: "ref-" + orderID, PaidAt: time.Now().UTC()}
	synced, err = s.service.SyncPaymentStatus(s.GetContext(), orderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, synced.PaymentStatus)

	sub, err := s.subRepo.GetByFamily(s.GetContext(), testutil.DefaultFamilyID)
	s.Require().NoError(err)
	s.Equal("premium", sub.TierID)

	s.GetMidtrans().Status = payment.ErrorResult{Code: "deny"}
	synced, err = s.service.SyncPaymentStatus(s.GetContext(), orderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSuccess, synced.PaymentStatus)
}

func (s *PaymentServiceSuite) TestCancelPayment() {
	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", ""))
	s.Require().NoError(err)
	orderID := resp.Transaction.OrderID

	cancelled, err := s.service.CancelPayment(s.GetContext(), orderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCancelled, cancelled.PaymentStatus)
	s.Equal([]string{orderID}, s.GetMidtrans().Cancelled())
	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventPaymentClosed)

	_, err = s.service.CancelPayment(s.GetContext(), orderID)
	s.True(ierr.IsInvalidOperation(err), "got %v", err)

	s.Run("gateway refusal keeps the order pending", func() {
		resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("premium", ""))
		s.Require().NoError(err)

		gateway := &failingCancelGateway{MockGateway: s.GetMidtrans(), err: errors.New("already paid")}
		s.GetGateways().Register(gateway)
		defer s.GetGateways().Register(s.GetMidtrans())

		_, err = s.service.CancelPayment(s.GetContext(), resp.Transaction.OrderID)
		s.Error(err)

		txn, err := s.paymentRepo.GetByOrderID(s.GetContext(), resp.Transaction.OrderID)
		s.Require().NoError(err)
		s.Equal(types.PaymentStatusPending, txn.PaymentStatus)
	})
}

type failingCancelGateway struct {
	*testutil.MockGateway
	err error
}

func (g *failingCancelGateway) Cancel(context.Context, string, string) error {
	return g.err
}

func (s *PaymentServiceSuite) TestExpireOverdue() {
	overdue, err := s.service.CreateCheckout(familyContext("fam_overdue"), checkoutRequest("family", ""))
	s.Require().NoError(err)
	fresh, err := s.service.CreateCheckout(familyContext("fam_fresh"), checkoutRequest("family", ""))
	s.Require().NoError(err)

	txn, err := s.paymentRepo.GetByOrderID(s.GetContext(), overdue.Transaction.OrderID)
	s.Require().NoError(err)
	txn.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.Require().NoError(s.paymentRepo.Update(s.GetContext(), txn))

	count, err := s.service.ExpireOverdue(s.GetContext(), time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(1, count)

	expired, err := s.paymentRepo.GetByOrderID(s.GetContext(), overdue.Transaction.OrderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusExpired, expired.PaymentStatus)

	pending, err := s.paymentRepo.GetByOrderID(s.GetContext(), fresh.Transaction.OrderID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, pending.PaymentStatus)
}

func (s *PaymentServiceSuite) TestOwnership() {
	resp, err := s.service.CreateCheckout(s.GetContext(), checkoutRequest("family", ""))
	s.Require().NoError(err)
	orderID := resp.Transaction.OrderID

	got, err := s.service.GetPayment(s.GetContext(), orderID)
	s.Require().NoError(err)
	s.Equal(orderID, got.OrderID)

	_, err = s.service.GetPayment(familyContext(testutil.OtherFamilyID), orderID)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.CancelPayment(familyContext(testutil.OtherFamilyID), orderID)
	s.True(ierr.IsNotFound(err))

	got, err = s.service.GetPayment(s.GetAdminContext(), orderID)
	s.Require().NoError(err)
	s.Equal(testutil.DefaultFamilyID, got.FamilyID)

	_, err = s.service.CreateCheckout(familyContext(testutil.OtherFamilyID), checkoutRequest("premium", ""))
	s.Require().NoError(err)

	mine, err := s.service.ListPayments(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(mine.Items, 1)

	all, err := s.service.ListPayments(s.GetAdminContext(), nil)
	s.Require().NoError(err)
	s.Len(all.Items, 2)
}
