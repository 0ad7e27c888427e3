package xendit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/httpclient"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(url string) *Gateway {
	cfg := config.GetDefaultConfig()
	client := httpclient.NewDefaultClient(cfg, logger.NewNoopLogger())
	return NewGateway(config.XenditConfig{
		Enabled:       true,
		SecretKey:     "xnd_development_test",
		CallbackToken: "callback-token",
		BaseURL:       url,
	}, client, logger.NewNoopLogger())
}

func TestParseNotification(t *testing.T) {
	g := newGateway("http://unused")
	body := []byte(`{"id":"inv-1","external_id":"ORDER-1-ABC","status":"PAID","amount":20000,"payment_channel":"BCA","paid_at":"2024-05-01T03:00:00.000Z"}`)

	t.Run("paid", func(t *testing.T) {
		headers := http.Header{}
		headers.Set(CallbackTokenHeader, "callback-token")

		n, err := g.ParseNotification(context.Background(), body, headers)
		require.NoError(t, err)
		assert.Equal(t, "ORDER-1-ABC", n.OrderID)
		assert.Equal(t, int64(20000), n.Amount)

		success, ok := n.Result.(payment.SuccessResult)
		require.True(t, ok)
		assert.Equal(t, "inv-1", success.GatewayReference)
		assert.Equal(t, "bca", success.Method)
		assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), success.PaidAt)
	})

	t.Run("wrong token", func(t *testing.T) {
		headers := http.Header{}
		headers.Set(CallbackTokenHeader, "nope")

		_, err := g.ParseNotification(context.Background(), body, headers)
		require.Error(t, err)
		assert.True(t, ierr.Is(err, ierr.ErrUnauthorized))
	})
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status string
		want   types.PaymentStatus
	}{
		{status: "PENDING", want: types.PaymentStatusPending},
		{status: "PAID", want: types.PaymentStatusSuccess},
		{status: "SETTLED", want: types.PaymentStatusSuccess},
		{status: "EXPIRED", want: types.PaymentStatusExpired},
		{status: "UNKNOWN", want: types.PaymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStatus(&invoice{ID: "inv-1", Status: tt.status}).Status())
		})
	}
}

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoices", r.URL.Path)

		var req createInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ORDER-1-ABC", req.ExternalID)
		assert.Equal(t, "IDR", req.Currency)
		assert.Equal(t, int64(86400), req.InvoiceDuration)

		_, _ = w.Write([]byte(`{"id":"inv-1","external_id":"ORDER-1-ABC","status":"PENDING","invoice_url":"https://checkout.xendit.co/inv-1"}`))
	}))
	defer srv.Close()

	session, err := newGateway(srv.URL).CreateCheckout(context.Background(), &base.CheckoutRequest{
		OrderID:     "ORDER-1-ABC",
		Amount:      20000,
		Currency:    "IDR",
		Description: "Family monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", session.Reference)
	assert.Equal(t, "https://checkout.xendit.co/inv-1", session.RedirectURL)
}
