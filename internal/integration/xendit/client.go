package xendit

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
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
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultBaseURL = "https://api.xendit.co"

	// CallbackTokenHeader carries the verification token on invoice callbacks
	CallbackTokenHeader = "X-Callback-Token"
)

// Gateway creates Xendit invoices
type Gateway struct {
	cfg     config.XenditConfig
	client  httpclient.Client
	logger  *logger.Logger
	baseURL string
}

func NewGateway(cfg config.XenditConfig, client httpclient.Client, logger *logger.Logger) *Gateway {
	baseURL := lo.Ternary(cfg.BaseURL != "", cfg.BaseURL, defaultBaseURL)
	return &Gateway{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (g *Gateway) Provider() types.PaymentProvider {
	return types.PaymentProviderXendit
}

func (g *Gateway) headers() map[string]string {
	auth := base64.StdEncoding.EncodeToString([]byte(g.cfg.SecretKey + ":"))
	return map[string]string{
		"Accept":        "application/json",
		"Authorization": "Basic " + auth,
	}
}

func (g *Gateway) CreateCheckout(ctx context.Context, req *base.CheckoutRequest) (*base.CheckoutSession, error) {
	g.logger.Infow("creating xendit invoice",
		"order_id", req.OrderID,
		"amount", req.Amount,
	)

	duration := int64(24 * time.Hour / time.Second)
	if !req.ExpiresAt.IsZero() {
		duration = max(int64(time.Until(req.ExpiresAt)/time.Second), 60)
	}

	payload := createInvoiceRequest{
		ExternalID:  req.OrderID,
		Amount:      req.Amount,
		PayerEmail:  req.Customer.Email,
		Description: req.Description,
		Items: []invoiceItem{{
			Name:     req.Description,
			Quantity: 1,
			Price:    req.Amount,
		}},
		Currency:           req.Currency,
		InvoiceDuration:    duration,
		SuccessRedirectURL: req.SuccessURL,
		FailureRedirectURL: req.FailureURL,
	}
	if req.Customer.Name != "" {
		payload.Customer = &invoiceCustomer{
			GivenNames:   req.Customer.Name,
			Email:        req.Customer.Email,
			MobileNumber: req.Customer.Phone,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode payment request").
			Mark(ierr.ErrSystem)
	}

	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     g.baseURL + "/v2/invoices",
		Headers: g.headers(),
		Body:    body,
	})
	if err != nil {
		g.logger.Errorw("xendit invoice creation failed", "order_id", req.OrderID, "error", err)
		return nil, err
	}

	inv, err := decodeInvoice(resp.Body)
	if err != nil {
		return nil, err
	}

	return &base.CheckoutSession{
		Reference:   inv.ID,
		RedirectURL: inv.InvoiceURL,
	}, nil
}

func (g *Gateway) GetStatus(ctx context.Context, orderID, reference string) (payment.Result, error) {
	if reference == "" {
		return nil, ierr.NewError("xendit invoice id is missing").
			WithHint("Payment has no gateway reference yet").
			WithReportableDetails(map[string]any{"order_id": orderID}).
			Mark(ierr.ErrInvalidOperation)
	}

	resp, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/v2/invoices/%s", g.baseURL, reference),
		Headers: g.headers(),
	})
	if err != nil {
		return nil, err
	}

	inv, err := decodeInvoice(resp.Body)
	if err != nil {
		return nil, err
	}
	return mapStatus(inv), nil
}

// Cancel expires the invoice so it can no longer be paid
func (g *Gateway) Cancel(ctx context.Context, orderID, reference string) error {
	if reference == "" {
		return nil
	}

	_, err := g.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/invoices/%s/expire!", g.baseURL, reference),
		Headers: g.headers(),
	})
	if err != nil {
		g.logger.Errorw("xendit invoice expiry failed", "order_id", orderID, "invoice_id", reference, "error", err)
	}
	return err
}

func (g *Gateway) ParseNotification(_ context.Context, payload []byte, headers http.Header) (*base.Notification, error) {
	token := headers.Get(CallbackTokenHeader)
	if g.cfg.CallbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.CallbackToken)) != 1 {
		return nil, ierr.NewError("invalid xendit callback token").
			WithHint("Callback token does not match").
			Mark(ierr.ErrUnauthorized)
	}

	var inv invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid notification payload").
			Mark(ierr.ErrValidation)
	}

	return &base.Notification{
		OrderID: inv.ExternalID,
		Amount:  decimal.NewFromFloat(inv.Amount).Round(0).IntPart(),
		Result:  mapStatus(&inv),
	}, nil
}

func decodeInvoice(body []byte) (*invoice, error) {
	var inv invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected response from payment provider").
			Mark(ierr.ErrHTTPClient)
	}
	return &inv, nil
}

func mapStatus(inv *invoice) payment.Result {
	switch strings.ToUpper(inv.Status) {
	case statusPaid, statusSettled:
		paidAt, err := time.Parse(time.RFC3339, inv.PaidAt)
		if err != nil {
			paidAt = time.Now()
		}
		return payment.SuccessResult{
			GatewayReference: inv.ID,
			PaidAt:           paidAt.UTC(),
			Method:           strings.ToLower(lo.CoalesceOrEmpty(inv.PaymentChannel, inv.PaymentMethod)),
		}
	case statusPending:
		return payment.PendingResult{GatewayReference: inv.ID}
	case statusExpired:
		return payment.ClosedResult{Reason: types.PaymentClosedExpired}
	default:
		return payment.ErrorResult{
			Code:    strings.ToLower(inv.Status),
			Message: "unexpected invoice status",
		}
	}
}
