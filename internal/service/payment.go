package service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/pricing"
	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/idempotency"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/lock"
	"github.com/rumahku/billing/internal/sentry"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

const (
	checkoutOutcomeCreated = "created"
	checkoutOutcomeReused  = "reused"
	checkoutOutcomeFree    = "free"
	checkoutOutcomeFailed  = "gateway_failed"

	// PaymentMethodPromo marks checkouts fully covered by a promo code
	PaymentMethodPromo = "promo"
)

// PaymentService runs checkouts and applies gateway results
type PaymentService interface {
	// CreateCheckout prices the tier, reserves the promo and opens a gateway checkout
	CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)

	// HandlePaymentResult applies a gateway result to a pending transaction.
	// Results for terminal transactions are ignored so callbacks are idempotent.
	HandlePaymentResult(ctx context.Context, orderID string, result payment.Result) (*payment.Transaction, error)

	// HandleNotification authenticates and applies a gateway callback
	HandleNotification(ctx context.Context, provider types.PaymentProvider, payload []byte, headers http.Header) error

	// SyncPaymentStatus polls the gateway and applies what it reports
	SyncPaymentStatus(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error)

	// CancelPayment closes a pending checkout at the gateway and locally
	CancelPayment(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error)

	// ExpireOverdue closes pending transactions past their expiry
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)

	GetPayment(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentTransactionFilter) (*dto.ListPaymentTransactionsResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
	}
}

func (s *paymentService) CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	familyID := types.GetFamilyID(ctx)
	if err := requireFamily(familyID); err != nil {
		return nil, err
	}
	provider := lo.CoalesceOrEmpty(req.Provider, s.Config.Payment.DefaultProvider)

	release, err := s.acquireCheckoutLock(ctx, familyID)
	if err != nil {
		return nil, err
	}
	defer release()

	quote, err := NewPricingService(s.ServiceParams).Quote(ctx, &dto.QuoteRequest{
		TierID:        req.TierID,
		BillingPeriod: req.BillingPeriod,
		PromoCode:     req.PromoCode,
	})
	if err != nil {
		return nil, err
	}

	var gateway base.PaymentGateway
	if !quote.IsFree() {
		gateway, err = s.Gateways.Get(provider)
		if err != nil {
			return nil, err
		}
		provider = gateway.Provider()
	} else {
		provider = types.PaymentProviderNone
	}

	idempotencyKey := s.Idempotency.Checkout(idempotency.CheckoutKey{
		FamilyID:      familyID,
		TierID:        quote.TierID,
		BillingPeriod: quote.BillingPeriod,
		PromoCode:     lo.FromPtr(quote.AppliedCode),
		Provider:      provider,
	})

	existing, err := s.PaymentRepo.GetPendingByIdempotencyKey(ctx, idempotencyKey)
	if err == nil && existing != nil {
		s.Logger.Infow("reusing pending checkout",
			"order_id", existing.OrderID,
			"family_id", familyID,
		)
		s.Metrics.RecordCheckout(provider, checkoutOutcomeReused)
		return &dto.CheckoutResponse{
			Transaction: &dto.PaymentTransactionResponse{Transaction: existing},
			Quote:       quote,
			RedirectURL: lo.FromPtr(existing.CheckoutURL),
			Reused:      true,
		}, nil
	}
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	txn := s.newTransaction(ctx, familyID, quote, provider, idempotencyKey, now)

	s.Logger.Infow("creating checkout",
		"order_id", txn.OrderID,
		"family_id", familyID,
		"tier_id", txn.TierID,
		"provider", provider,
		"amount", txn.Amount,
		"promo_code", lo.FromPtr(txn.PromoCode),
	)

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PaymentRepo.Create(ctx, txn); err != nil {
			return err
		}
		if quote.AppliedCode == nil {
			return nil
		}
		return s.redeemPromo(ctx, txn, quote, now)
	})
	if err != nil {
		return nil, err
	}

	if quote.IsFree() {
		updated, err := s.HandlePaymentResult(ctx, txn.OrderID, payment.SuccessResult{
			PaidAt: now,
			Method: PaymentMethodPromo,
		})
		if err != nil {
			return nil, err
		}
		s.Metrics.RecordCheckout(provider, checkoutOutcomeFree)
		return &dto.CheckoutResponse{
			Transaction: &dto.PaymentTransactionResponse{Transaction: updated},
			Quote:       quote,
			Activated:   updated.PaymentStatus == types.PaymentStatusSuccess,
		}, nil
	}

	session, err := s.openGatewayCheckout(ctx, gateway, txn, req.Customer.ToCustomer())
	if err != nil {
		s.Metrics.RecordCheckout(provider, checkoutOutcomeFailed)
		if _, markErr := s.HandlePaymentResult(ctx, txn.OrderID, payment.ErrorResult{
			Code:    "gateway_error",
			Message: err.Error(),
		}); markErr != nil {
			s.Logger.Errorw("failed to mark checkout as failed", "order_id", txn.OrderID, "error", markErr)
		}
		return nil, err
	}

	txn.GatewayReference = lo.EmptyableToPtr(session.Reference)
	txn.CheckoutURL = lo.EmptyableToPtr(session.RedirectURL)
	txn.UpdatedAt = time.Now().UTC()
	if err := s.PaymentRepo.Update(ctx, txn); err != nil {
		return nil, err
	}

	s.Metrics.RecordCheckout(provider, checkoutOutcomeCreated)
	s.publish(ctx, types.WebhookEventPaymentCreated, txn)

	return &dto.CheckoutResponse{
		Transaction: &dto.PaymentTransactionResponse{Transaction: txn},
		Quote:       quote,
		RedirectURL: session.RedirectURL,
	}, nil
}

// acquireCheckoutLock serialises checkouts of one family
func (s *paymentService) acquireCheckoutLock(ctx context.Context, familyID string) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}

	key := lock.CheckoutKey(familyID)
	token, ok, err := s.Locker.TryLock(ctx, key, s.Config.Billing.CheckoutLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ierr.NewError("checkout already in progress").
			WithHint("A checkout for your family is already in progress, please wait a moment").
			WithReportableDetails(map[string]any{
				"family_id": familyID,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	return func() {
		// the request context may already be cancelled
		if err := s.Locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.Logger.Warnw("failed to release checkout lock", "family_id", familyID, "error", err)
		}
	}, nil
}

func (s *paymentService) newTransaction(
	ctx context.Context,
	familyID string,
	quote *pricing.Quote,
	provider types.PaymentProvider,
	idempotencyKey string,
	now time.Time,
) *payment.Transaction {
	metadata := types.Metadata{
		"original_amount": strconv.FormatInt(quote.BaseAmount, 10),
		"discount_amount": strconv.FormatInt(quote.DiscountAmount, 10),
		"tier_id":         quote.TierID,
		"billing_period":  quote.BillingPeriod.String(),
	}
	if quote.AppliedCode != nil {
		metadata["promo_code"] = *quote.AppliedCode
	}

	return &payment.Transaction{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_TRANSACTION),
		OrderID:        types.GenerateOrderID(now),
		FamilyID:       familyID,
		UserID:         types.GetUserID(ctx),
		TierID:         quote.TierID,
		BillingPeriod:  quote.BillingPeriod,
		Provider:       provider,
		PaymentStatus:  types.PaymentStatusPending,
		OriginalAmount: quote.BaseAmount,
		DiscountAmount: quote.DiscountAmount,
		Amount:         quote.FinalAmount,
		Currency:       quote.Currency,
		PromoCode:      quote.AppliedCode,
		IdempotencyKey: idempotencyKey,
		ExpiresAt:      now.Add(s.Config.Billing.PaymentExpiry),
		Metadata:       metadata,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

// redeemPromo consumes one use of the applied code. The store re-checks the
// usage cap atomically, a code exhausted since the quote is rejected here.
func (s *paymentService) redeemPromo(ctx context.Context, txn *payment.Transaction, quote *pricing.Quote, now time.Time) error {
	p, err := s.PromoRepo.GetByCode(ctx, *quote.AppliedCode)
	if err != nil {
		if ierr.IsNotFound(err) {
			return promo.NewRejectionError(types.PromoRejectionNotFound, *quote.AppliedCode)
		}
		return err
	}

	redeemed, err := s.PromoRepo.Redeem(ctx, &promo.Redemption{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMO_REDEMPTION),
		PromoCodeID:    p.ID,
		Code:           p.Code,
		FamilyID:       txn.FamilyID,
		UserID:         txn.UserID,
		OrderID:        txn.OrderID,
		TierID:         txn.TierID,
		DiscountAmount: quote.DiscountAmount,
		RedeemedAt:     now,
	})
	if err != nil {
		if code, ok := promo.RejectionCodeFromError(err); ok {
			s.Metrics.RecordRejection(code)
		}
		return err
	}

	txn.PromoCodeID = lo.ToPtr(redeemed.ID)
	s.Metrics.RecordRedemption()
	s.Logger.Infow("promo code redeemed",
		"code", redeemed.Code,
		"order_id", txn.OrderID,
		"current_uses", redeemed.CurrentUses,
	)

	// the pending row was written before the code id was known
	return s.PaymentRepo.Update(ctx, txn)
}

func (s *paymentService) openGatewayCheckout(
	ctx context.Context,
	gateway base.PaymentGateway,
	txn *payment.Transaction,
	customer base.Customer,
) (*base.CheckoutSession, error) {
	span, spanCtx := s.Sentry.StartGatewaySpan(ctx, gateway.Provider(), "create_checkout", map[string]interface{}{
		"order_id": txn.OrderID,
	})
	if span != nil {
		defer span.Finish()
		ctx = spanCtx
	}

	session, err := gateway.CreateCheckout(ctx, &base.CheckoutRequest{
		OrderID:     txn.OrderID,
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		TierID:      txn.TierID,
		Description: "RumahKu " + txn.TierID + " (" + txn.BillingPeriod.String() + ")",
		Customer:    customer,
		SuccessURL:  s.Config.Payment.SuccessURL,
		FailureURL:  s.Config.Payment.FailureURL,
		ExpiresAt:   txn.ExpiresAt,
	})
	sentry.GatewaySpanStatus(span, err)
	if err != nil {
		s.Logger.Errorw("gateway checkout failed",
			"order_id", txn.OrderID,
			"provider", gateway.Provider(),
			"error", err,
		)
		s.Sentry.CaptureException(ctx, err)
		return nil, err
	}
	return session, nil
}

func (s *paymentService) HandlePaymentResult(ctx context.Context, orderID string, result payment.Result) (*payment.Transaction, error) {
	if result == nil {
		return nil, ierr.NewError("payment result is required").
			WithHint("Payment result is required").
			Mark(ierr.ErrValidation)
	}

	txn, err := s.PaymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if txn.IsTerminal() {
		s.Logger.Infow("ignoring result for settled payment",
			"order_id", orderID,
			"status", txn.PaymentStatus,
			"result", result.Kind(),
		)
		return txn, nil
	}

	now := time.Now().UTC()
	switch r := result.(type) {
	case payment.PendingResult:
		// nothing moves until the gateway settles
		if r.GatewayReference != "" && txn.GatewayReference == nil {
			txn.GatewayReference = lo.ToPtr(r.GatewayReference)
			txn.UpdatedAt = now
			if err := s.PaymentRepo.Update(ctx, txn); err != nil && !ierr.IsVersionConflict(err) {
				return nil, err
			}
		}
		s.Metrics.RecordPaymentResult(txn.Provider, result.Kind())
		return txn, nil
	case payment.SuccessResult:
		txn.PaidAt = lo.ToPtr(lo.Ternary(r.PaidAt.IsZero(), now, r.PaidAt.UTC()))
		txn.PaymentMethod = lo.EmptyableToPtr(r.Method)
		if r.GatewayReference != "" {
			txn.GatewayReference = lo.ToPtr(r.GatewayReference)
		}
	case payment.ErrorResult:
		txn.FailedAt = &now
		txn.FailureReason = lo.ToPtr(lo.CoalesceOrEmpty(r.Message, r.Code))
	case payment.ClosedResult:
		txn.FailureReason = lo.ToPtr(string(r.Reason))
	default:
		return nil, ierr.NewError("unknown payment result").
			WithHint("Unsupported payment result").
			Mark(ierr.ErrValidation)
	}

	txn.PaymentStatus = result.Status()
	txn.UpdatedAt = now

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PaymentRepo.Update(ctx, txn); err != nil {
			return err
		}
		if txn.PaymentStatus != types.PaymentStatusSuccess {
			return nil
		}
		_, err := NewSubscriptionService(s.ServiceParams).Activate(ctx, ActivateSubscriptionParams{
			FamilyID:      txn.FamilyID,
			TierID:        txn.TierID,
			BillingPeriod: txn.BillingPeriod,
			OrderID:       txn.OrderID,
			Amount:        txn.Amount,
			PaidAt:        *txn.PaidAt,
		})
		return err
	})
	if err != nil {
		if ierr.IsVersionConflict(err) {
			// a concurrent callback settled it first
			s.Logger.Infow("payment settled concurrently", "order_id", orderID)
			return s.PaymentRepo.GetByOrderID(ctx, orderID)
		}
		return nil, err
	}

	s.Logger.Infow("payment result applied",
		"order_id", orderID,
		"status", txn.PaymentStatus,
		"provider", txn.Provider,
	)
	s.Metrics.RecordPaymentResult(txn.Provider, result.Kind())
	s.publish(ctx, paymentEventName(txn.PaymentStatus), txn)

	return txn, nil
}

func (s *paymentService) HandleNotification(ctx context.Context, provider types.PaymentProvider, payload []byte, headers http.Header) error {
	gateway, err := s.Gateways.Get(provider)
	if err != nil {
		return err
	}

	notification, err := gateway.ParseNotification(ctx, payload, headers)
	if err != nil {
		s.Logger.Warnw("rejected payment notification", "provider", provider, "error", err)
		return err
	}
	if notification == nil {
		return nil
	}

	txn, err := s.PaymentRepo.GetByOrderID(ctx, notification.OrderID)
	if err != nil {
		return err
	}

	if txn.Provider != gateway.Provider() {
		return ierr.NewError("notification provider does not match transaction").
			WithHint("Payment notification does not belong to this order").
			WithReportableDetails(map[string]any{
				"order_id": txn.OrderID,
				"provider": provider,
			}).
			Mark(ierr.ErrValidation)
	}

	if notification.Result.Kind() == types.PaymentResultSuccess &&
		notification.Amount > 0 && notification.Amount != txn.Amount {
		s.Logger.Errorw("payment amount mismatch",
			"order_id", txn.OrderID,
			"expected", txn.Amount,
			"received", notification.Amount,
		)
		return ierr.NewError("paid amount does not match order").
			WithHint("Paid amount does not match the order amount").
			WithReportableDetails(map[string]any{
				"order_id": txn.OrderID,
				"expected": txn.Amount,
				"received": notification.Amount,
			}).
			Mark(ierr.ErrValidation)
	}

	_, err = s.HandlePaymentResult(ctx, notification.OrderID, notification.Result)
	return err
}

func (s *paymentService) SyncPaymentStatus(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error) {
	txn, err := s.getOwnedTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() || txn.Provider == types.PaymentProviderNone {
		return &dto.PaymentTransactionResponse{Transaction: txn}, nil
	}

	gateway, err := s.Gateways.Get(txn.Provider)
	if err != nil {
		return nil, err
	}

	result, err := gateway.GetStatus(ctx, txn.OrderID, lo.FromPtr(txn.GatewayReference))
	if err != nil {
		return nil, err
	}

	updated, err := s.HandlePaymentResult(ctx, txn.OrderID, result)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentTransactionResponse{Transaction: updated}, nil
}

func (s *paymentService) CancelPayment(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error) {
	txn, err := s.getOwnedTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		return nil, ierr.NewError("payment is already settled").
			WithHintf("Payment is already %s", txn.PaymentStatus).
			WithReportableDetails(map[string]any{
				"order_id": txn.OrderID,
				"status":   txn.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if txn.Provider != types.PaymentProviderNone {
		gateway, err := s.Gateways.Get(txn.Provider)
		if err != nil {
			return nil, err
		}
		if err := gateway.Cancel(ctx, txn.OrderID, lo.FromPtr(txn.GatewayReference)); err != nil {
			return nil, err
		}
	}

	updated, err := s.HandlePaymentResult(ctx, txn.OrderID, payment.ClosedResult{Reason: types.PaymentClosedCancelled})
	if err != nil {
		return nil, err
	}
	return &dto.PaymentTransactionResponse{Transaction: updated}, nil
}

func (s *paymentService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	filter := types.NewPaymentTransactionFilter()
	filter.QueryFilter = types.NewNoLimitQueryFilter()
	filter.Statuses = []types.PaymentStatus{types.PaymentStatusPending}

	pending, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, txn := range lo.Filter(pending, func(t *payment.Transaction, _ int) bool { return t.IsOverdue(now) }) {
		updated, err := s.HandlePaymentResult(ctx, txn.OrderID, payment.ClosedResult{Reason: types.PaymentClosedExpired})
		if err != nil {
			s.Logger.Errorw("failed to expire payment", "order_id", txn.OrderID, "error", err)
			continue
		}
		if updated.PaymentStatus == types.PaymentStatusExpired {
			expired++
		}
	}

	s.Logger.Infow("expired overdue payments", "pending", len(pending), "expired", expired)
	return expired, nil
}

func (s *paymentService) GetPayment(ctx context.Context, orderID string) (*dto.PaymentTransactionResponse, error) {
	txn, err := s.getOwnedTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentTransactionResponse{Transaction: txn}, nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentTransactionFilter) (*dto.ListPaymentTransactionsResponse, error) {
	if filter == nil {
		filter = types.NewPaymentTransactionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if familyID := types.GetFamilyID(ctx); familyID != "" && !types.IsAdmin(ctx) {
		filter.FamilyID = familyID
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txns, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(txns, func(t *payment.Transaction, _ int) *dto.PaymentTransactionResponse {
		return &dto.PaymentTransactionResponse{Transaction: t}
	})
	response := types.NewPageResponse(items, filter)
	return &response, nil
}

// getOwnedTransaction hides other families' orders from members
func (s *paymentService) getOwnedTransaction(ctx context.Context, orderID string) (*payment.Transaction, error) {
	if orderID == "" {
		return nil, ierr.NewError("order id is required").
			WithHint("Order id is required").
			Mark(ierr.ErrValidation)
	}

	txn, err := s.PaymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	familyID := types.GetFamilyID(ctx)
	if familyID != "" && !types.IsAdmin(ctx) && txn.FamilyID != familyID {
		return nil, ierr.NewError("payment belongs to another family").
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"order_id": orderID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return txn, nil
}

func (s *paymentService) publish(ctx context.Context, eventName string, txn *payment.Transaction) {
	publishWebhookEvent(ctx, s.WebhookPublisher, s.Logger, eventName, txn.FamilyID, &dto.PaymentEventPayload{
		OrderID:       txn.OrderID,
		FamilyID:      txn.FamilyID,
		TierID:        txn.TierID,
		BillingPeriod: txn.BillingPeriod,
		Provider:      txn.Provider,
		Status:        txn.PaymentStatus,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		PromoCode:     txn.PromoCode,
		FailureReason: txn.FailureReason,
	})
}

func paymentEventName(status types.PaymentStatus) string {
	switch status {
	case types.PaymentStatusSuccess:
		return types.WebhookEventPaymentSucceeded
	case types.PaymentStatusFailed:
		return types.WebhookEventPaymentFailed
	default:
		return types.WebhookEventPaymentClosed
	}
}
