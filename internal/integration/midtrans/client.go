package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/httpclient"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sandboxSnapURL    = "https://app.sandbox.midtrans.com/snap/v1"
	productionSnapURL = "https://app.midtrans.com/snap/v1"
	sandboxCoreURL    = "https://api.sandbox.midtrans.com/v2"
	productionCoreURL = "https://api.midtrans.com/v2"
)

// Midtrans reports times in Western Indonesia Time
var wib = time.FixedZone("WIB", 7*60*60)

// Gateway creates Snap checkouts and reads core API statuses
type Gateway struct {
	cfg     config.MidtransConfig
	client  httpclient.Client
	logger  *logger.Logger
	snapURL string
	coreURL string
}

func NewGateway(cfg config.MidtransConfig, client httpclient.Client, logger *logger.Logger) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		snapURL: sandboxSnapURL,
		coreURL: sandboxCoreURL,
	}
	if cfg.IsProduction {
		g.snapURL = productionSnapURL
		g.coreURL = productionCoreURL
	}
	return g
}

// WithBaseURLs points the gateway at another host, used against test servers
func (g *Gateway) WithBaseURLs(snapURL, coreURL string) *Gateway {
	g.snapURL = strings.TrimSuffix(snapURL, "/")
	g.coreURL = strings.TrimSuffix(coreURL, "/")
	return g
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderMidtrans
}

func (g *Gateway) headers() map[string]string {
	auth := base64.StdEncoding.EncodeToString([]byte(g.cfg.ServerKey + ":"))
	return map[string]string{
		"Accept":        "application/json",
		"Authorization": "Basic " + auth,
	}
}

func (g *Gateway) CreateCheckout(ctx context.Context, req *base.CheckoutRequest) (*base.CheckoutSession, error) {
	g.logger.Infow("creating midtrans snap transaction",
		"order_id", req.OrderID,
		"amount", req.Amount,
	)

	payload := snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     req.OrderID,
			GrossAmount: req.Amount,
		},
		CustomerDetails: customerDetails{
			FirstName: req.Customer.Name,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
		},
		ItemDetails: []itemDetail{{
			ID:       req.TierID,
			Name:     req.Description,
			Price:    req.Amount,
			Quantity: 1,
		}},
		CreditCard:      creditCard{Secure: true},
		EnabledPayments: enabledPayments,
	}
	if !req.ExpiresAt.IsZero() {
		now := time.Now().In(wib)
		payload.Expiry = &expiry{
			StartTime: now.Format("2006-01-02 15:04:05 -0700"),
			Unit:      "minute",
			Duration:  max(int64(req.ExpiresAt.Sub(now).Minutes()), 1),
		}
	}
	if req.SuccessURL != "" || req.FailureURL != "" {
		payload.Callbacks = &callbacks{Finish: req.SuccessURL, Error: req.FailureURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode payment request").
			Mark(ierr.ErrSystem)
	}

	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     g.snapURL + "/transactions",
		Headers: g.headers(),
		Body:    body,
	})
	if err != nil {
		g.logger.Errorw("midtrans snap transaction failed", "order_id", req.OrderID, "error", err)
		return nil, err
	}

	var snap snapResponse
	if err := json.Unmarshal(resp.Body, &snap); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected response from payment provider").
			Mark(ierr.ErrHTTPClient)
	}
	if snap.Token == "" {
		return nil, ierr.NewError("midtrans returned no snap token").
			WithHint("Payment provider rejected the request").
			WithReportableDetails(map[string]any{"errors": snap.ErrorMessages}).
			Mark(ierr.ErrHTTPClient)
	}

	return &base.CheckoutSession{
		Reference:   snap.Token,
		RedirectURL: snap.RedirectURL,
	}, nil
}

func (g *Gateway) GetStatus(ctx context.Context, orderID, _ string) (payment.Result, error) {
	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/%s/status", g.coreURL, orderID),
		Headers: g.headers(),
	})
	if err != nil {
		return nil, err
	}

	var status statusResponse
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected response from payment provider").
			Mark(ierr.ErrHTTPClient)
	}

	// the core api answers 200 with a 404 body until a payment method is chosen
	if status.StatusCode == "404" {
		return payment.PendingResult{Reason: "awaiting payment method"}, nil
	}
	return mapStatus(&status), nil
}

func (g *Gateway) Cancel(ctx context.Context, orderID, _ string) error {
	_, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/cancel", g.coreURL, orderID),
		Headers: g.headers(),
	})
	if httpErr, ok := httpclient.IsHTTPError(err); ok && httpErr.StatusCode == http.StatusNotFound {
		// nothing was paid yet, the snap token simply lapses
		return nil
	}
	return err
}

func (g *Gateway) ParseNotification(_ context.Context, payload []byte, _ http.Header) (*base.Notification, error) {
	var status statusResponse
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid notification payload").
			Mark(ierr.ErrValidation)
	}

	if !g.VerifySignature(&status) {
		return nil, ierr.NewError("invalid midtrans signature").
			WithHint("Notification signature does not match").
			WithReportableDetails(map[string]any{"order_id": status.OrderID}).
			Mark(ierr.ErrUnauthorized)
	}

	amount, err := decimal.NewFromString(status.GrossAmount)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid gross amount in notification").
			Mark(ierr.ErrValidation)
	}

	return &base.Notification{
		OrderID: status.OrderID,
		Amount:  amount.Round(0).IntPart(),
		Result:  mapStatus(&status),
	}, nil
}

// VerifySignature checks sha512(order_id + status_code + gross_amount + server_key)
func (g *Gateway) VerifySignature(status *statusResponse) bool {
	expected := Signature(status.OrderID, status.StatusCode, status.GrossAmount, g.cfg.ServerKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(status.SignatureKey))) == 1
}

// Signature computes the notification signature key
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func mapStatus(s *statusResponse) payment.Result {
	switch s.TransactionStatus {
	case "capture":
		if s.FraudStatus == "challenge" {
			return payment.PendingResult{GatewayReference: s.TransactionID, Reason: "fraud review"}
		}
		return successResult(s)
	case "settlement":
		return successResult(s)
	case "pending", "authorize":
		return payment.PendingResult{GatewayReference: s.TransactionID, Reason: s.StatusMessage}
	case "expire":
		return payment.ClosedResult{Reason: types.PaymentClosedExpired}
	case "cancel":
		return payment.ClosedResult{Reason: types.PaymentClosedCancelled}
	default:
		return payment.ErrorResult{
			Code:    s.TransactionStatus,
			Message: s.StatusMessage,
		}
	}
}

func successResult(s *statusResponse) payment.Result {
	paidAt := parseTime(s.SettlementTime)
	if paidAt.IsZero() {
		paidAt = parseTime(s.TransactionTime)
	}
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	return payment.SuccessResult{
		GatewayReference: s.TransactionID,
		PaidAt:           paidAt,
		Method:           s.PaymentType,
	}
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", value, wib)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
