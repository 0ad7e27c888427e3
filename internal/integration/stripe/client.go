package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// SignatureHeader carries the webhook signature
	SignatureHeader = "Stripe-Signature"

	// stripe caps checkout session lifetime at 24 hours and floors it at 30 minutes
	minSessionLifetime = 30 * time.Minute
	maxSessionLifetime = 24 * time.Hour

	metadataOrderID = "order_id"
	metadataTierID  = "tier_id"
)

// Gateway creates Stripe Checkout Sessions
type Gateway struct {
	cfg    config.StripeConfig
	client *stripe.Client
	logger *logger.Logger
}

func NewGateway(cfg config.StripeConfig, logger *logger.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: stripe.NewClient(cfg.SecretKey, nil),
		logger: logger,
	}
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

// toMinorUnits converts a whole currency amount to the smallest unit stripe expects
func toMinorUnits(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(amount int64) int64 {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *Gateway) CreateCheckout(ctx context.Context, req *base.CheckoutRequest) (*base.CheckoutSession, error) {
	g.logger.Infow("creating stripe checkout session",
		"order_id", req.OrderID,
		"amount", req.Amount,
		"currency", req.Currency,
	)

	metadata := map[string]string{
		metadataOrderID: req.OrderID,
		metadataTierID:  req.TierID,
	}

	params := &stripe.CheckoutSessionCreateParams{
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.FailureURL),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	if !req.ExpiresAt.IsZero() {
		lifetime := min(max(time.Until(req.ExpiresAt), minSessionLifetime), maxSessionLifetime)
		params.ExpiresAt = stripe.Int64(time.Now().Add(lifetime).Unix())
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create stripe checkout session",
			"error", err,
			"order_id", req.OrderID)
		return nil, wrapError(err, "Unable to create Stripe checkout session", req.OrderID)
	}

	return &base.CheckoutSession{
		Reference:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

func (g *Gateway) GetStatus(ctx context.Context, orderID, reference string) (payment.Result, error) {
	if reference == "" {
		return nil, ierr.NewError("stripe session id is missing").
			WithHint("Payment has no gateway reference yet").
			WithReportableDetails(map[string]any{"order_id": orderID}).
			Mark(ierr.ErrInvalidOperation)
	}

	params := &stripe.CheckoutSessionRetrieveParams{
		Expand: []*string{stripe.String("payment_intent")},
	}
	session, err := g.client.V1CheckoutSessions.Retrieve(ctx, reference, params)
	if err != nil {
		return nil, wrapError(err, "Unable to retrieve Stripe checkout session", orderID)
	}
	return mapSession(session), nil
}

// Cancel expires an open checkout session
func (g *Gateway) Cancel(ctx context.Context, orderID, reference string) error {
	if reference == "" {
		return nil
	}

	_, err := g.client.V1CheckoutSessions.Expire(ctx, reference, &stripe.CheckoutSessionExpireParams{})
	if err != nil {
		return wrapError(err, "Unable to expire Stripe checkout session", orderID)
	}
	return nil
}

// ParseNotification verifies the webhook signature and maps checkout session events
func (g *Gateway) ParseNotification(_ context.Context, payload []byte, headers http.Header) (*base.Notification, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(SignatureHeader), g.cfg.WebhookSecret, options)
	if err != nil {
		g.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrUnauthorized)
	}

	switch string(event.Type) {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
	default:
		g.logger.Debugw("ignoring stripe webhook event", "event_id", event.ID, "type", event.Type)
		return nil, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid checkout session data in webhook").
			Mark(ierr.ErrValidation)
	}

	result := mapSession(&session)
	if string(event.Type) == "checkout.session.async_payment_failed" {
		result = payment.ErrorResult{Code: "async_payment_failed", Message: "Payment could not be completed"}
	}

	return &base.Notification{
		OrderID: orderIDOf(&session),
		Amount:  fromMinorUnits(session.AmountTotal),
		Result:  result,
	}, nil
}

func orderIDOf(session *stripe.CheckoutSession) string {
	if session.ClientReferenceID != "" {
		return session.ClientReferenceID
	}
	return session.Metadata[metadataOrderID]
}

func mapSession(session *stripe.CheckoutSession) payment.Result {
	switch session.Status {
	case stripe.CheckoutSessionStatusExpired:
		return payment.ClosedResult{Reason: types.PaymentClosedExpired}
	case stripe.CheckoutSessionStatusComplete:
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			reference := session.ID
			if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
				reference = session.PaymentIntent.ID
			}
			return payment.SuccessResult{
				GatewayReference: reference,
				PaidAt:           time.Now().UTC(),
				Method:           "card",
			}
		}
		return payment.PendingResult{GatewayReference: session.ID, Reason: "awaiting asynchronous payment"}
	default:
		return payment.PendingResult{GatewayReference: session.ID}
	}
}

func wrapError(err error, hint, orderID string) error {
	reference := ierr.ErrHTTPClient
	var stripeErr *stripe.Error
	if ierr.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
		reference = ierr.ErrUnavailable
	}
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(map[string]any{"order_id": orderID}).
		Mark(reference)
}
