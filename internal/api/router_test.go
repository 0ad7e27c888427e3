package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/api/cron"
	"github.com/rumahku/billing/internal/api/dto"
	v1 "github.com/rumahku/billing/internal/api/v1"
	"github.com/rumahku/billing/internal/auth"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/pyroscope"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const testAdminKey = "admin-secret"

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router    *gin.Engine
	adminHash string
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.BaseServiceTestSuite.SetupSuite()
	gin.SetMode(gin.TestMode)

	hash, err := auth.HashAPIKey(testAdminKey)
	s.Require().NoError(err)
	s.adminHash = hash
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	cfg.Auth.Disabled = true
	cfg.Auth.AdminAPIKeyHash = s.adminHash

	params := service.NewServiceParams(
		s.GetLogger(),
		cfg,
		s.GetDB(),
		s.GetStores().TierRepo,
		s.GetStores().PromoRepo,
		s.GetStores().PaymentRepo,
		s.GetStores().SubscriptionRepo,
		s.GetGateways(),
		s.GetLocker(),
		s.GetWebhookPublisher(),
		s.GetMetrics(),
		s.GetSentry(),
	)

	paymentService := service.NewPaymentService(params)
	subscriptionService := service.NewSubscriptionService(params)

	handlers := Handlers{
		Health:           v1.NewHealthHandler(s.GetLogger()),
		Tier:             v1.NewTierHandler(service.NewTierService(params), s.GetLogger()),
		Pricing:          v1.NewPricingHandler(service.NewPricingService(params), s.GetLogger()),
		Promo:            v1.NewPromoHandler(service.NewPromoService(params), s.GetLogger()),
		Payment:          v1.NewPaymentHandler(paymentService, s.GetLogger()),
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, s.GetLogger()),
		Dashboard:        v1.NewDashboardHandler(service.NewDashboardService(params), s.GetLogger()),
		Webhook:          v1.NewWebhookHandler(paymentService, s.GetLogger()),
		CronPayment:      cron.NewPaymentHandler(paymentService, s.GetLogger()),
		CronSubscription: cron.NewSubscriptionHandler(subscriptionService, s.GetLogger()),
	}

	s.router = NewRouter(
		handlers,
		cfg,
		s.GetLogger(),
		auth.NewProvider(cfg),
		auth.NewAdminKeyVerifier(cfg),
		s.GetMetrics(),
		pyroscope.NewPyroscopeService(cfg, s.GetLogger()),
	)
}

func (s *RouterSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func family(id string) map[string]string {
	return map[string]string{types.HeaderFamilyID: id}
}

func admin() map[string]string {
	return map[string]string{types.HeaderAPIKey: testAdminKey}
}

func (s *RouterSuite) createPromo(code string, percent int) {
	w := s.do(http.MethodPost, "/v1/admin/promo-codes", map[string]any{
		"code":           code,
		"discount_type":  types.DiscountTypePercentage,
		"discount_value": percent,
	}, admin())
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestCatalog() {
	w := s.do(http.MethodGet, "/v1/tiers", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var tiers dto.ListTiersResponse
	s.decode(w, &tiers)
	s.Require().Len(tiers.Items, 3)
	s.Equal("free", tiers.Items[0].ID)
	s.Equal("premium", tiers.Items[2].ID)

	w = s.do(http.MethodGet, "/v1/tiers/premium/price?billing_period=yearly", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var price dto.TierPriceResponse
	s.decode(w, &price)
	s.Equal(int64(1000000), price.Amount)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/tiers/platinum", nil, nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/tiers/premium/price?billing_period=weekly", nil, nil).Code)
}

func (s *RouterSuite) TestQuote() {
	s.createPromo("HEMAT50", 50)

	w := s.do(http.MethodGet, "/v1/pricing/quote?tier_id=premium&billing_period=monthly&promo_code=hemat50", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var quote dto.QuoteResponse
	s.decode(w, &quote)
	s.Equal(int64(100000), quote.BaseAmount)
	s.Equal(int64(50000), quote.DiscountAmount)
	s.Equal(int64(50000), quote.FinalAmount)

	w = s.do(http.MethodGet, "/v1/pricing/quote?tier_id=premium&billing_period=monthly&promo_code=NOPE", nil, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func (s *RouterSuite) TestValidatePromoCode() {
	s.createPromo("HEMAT50", 50)

	w := s.do(http.MethodPost, "/v1/promo-codes/validate", map[string]any{
		"code":    " hemat50 ",
		"tier_id": "family",
	}, family(testutil.DefaultFamilyID))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var valid dto.ValidatePromoResponse
	s.decode(w, &valid)
	s.True(valid.Valid)
	s.Equal("HEMAT50", valid.Code)
	s.Equal(int64(10000), valid.DiscountAmount)

	w = s.do(http.MethodPost, "/v1/promo-codes/validate", map[string]any{
		"code":    "MISSING",
		"tier_id": "family",
	}, family(testutil.DefaultFamilyID))
	s.Require().Equal(http.StatusOK, w.Code)

	var rejected dto.ValidatePromoResponse
	s.decode(w, &rejected)
	s.False(rejected.Valid)
	s.Equal(types.PromoRejectionNotFound, rejected.RejectionCode)
}

func (s *RouterSuite) TestAdminRequiresKey() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/v1/admin/promo-codes", nil, nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/v1/admin/dashboard", nil,
		map[string]string{types.HeaderAPIKey: "wrong"}).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/v1/admin/dashboard", nil, admin()).Code)
}

func (s *RouterSuite) TestCheckoutAndCallback() {
	w := s.do(http.MethodPost, "/v1/checkout", map[string]any{
		"tier_id":        "premium",
		"billing_period": "monthly",
		"customer": map[string]any{
			"name":  "Budi",
			"email": "budi@example.com",
		},
	}, family(testutil.DefaultFamilyID))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var checkout dto.CheckoutResponse
	s.decode(w, &checkout)
	orderID := checkout.Transaction.OrderID
	s.Equal(int64(100000), checkout.Transaction.Amount)
	s.NotEmpty(checkout.RedirectURL)

	// another family cannot see the order
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/payments/"+orderID, nil, family(testutil.OtherFamilyID)).Code)

	s.GetMidtrans().Notification = &base.Notification{
		OrderID: orderID,
		Amount:  100000,
		Result:  payment.SuccessResult{GatewayReference: "mid-1", PaidAt: time.Now().UTC(), Method: "qris"},
	}
	for i := 0; i < 2; i++ {
		w = s.do(http.MethodPost, "/webhooks/midtrans", map[string]any{"order_id": orderID}, nil)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/v1/subscription", nil, family(testutil.DefaultFamilyID))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sub dto.SubscriptionResponse
	s.decode(w, &sub)
	s.Equal("premium", sub.TierID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)

	w = s.do(http.MethodGet, "/v1/admin/families/"+testutil.DefaultFamilyID+"/subscription/history", nil, admin())
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var history dto.ListSubscriptionHistoryResponse
	s.decode(w, &history)
	s.Len(history.Items, 1)
}

func (s *RouterSuite) TestWebhookUnknownProvider() {
	w := s.do(http.MethodPost, "/webhooks/paypal", map[string]any{}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestCron() {
	for _, path := range []string{"/v1/admin/cron/payments/expire", "/v1/admin/cron/subscriptions/expire"} {
		w := s.do(http.MethodPost, path, nil, admin())
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		s.JSONEq(`{"status":"completed","expired":0}`, w.Body.String())
	}
}

func (s *RouterSuite) TestHealthDegraded() {
	h := v1.NewHealthHandler(s.GetLogger(), v1.HealthCheck{
		Name:  "postgres",
		Check: func(context.Context) error { return errors.New("connection refused") },
	})

	r := gin.New()
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.JSONEq(`{"status":"degraded","dependencies":{"postgres":"unavailable"}}`, w.Body.String())
}
