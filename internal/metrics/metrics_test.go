package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rumahku/billing/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordQuote("family", true)
	m.RecordQuote("family", true)
	m.RecordRejection(types.PromoRejectionExpired)
	m.RecordStoreFailure("timeout")
	m.RecordCheckout(types.PaymentProviderMidtrans, "created")
	m.RecordPaymentResult(types.PaymentProviderMidtrans, types.PaymentResultSuccess)
	m.RecordRedemption()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes.WithLabelValues("family", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues(string(types.PromoRejectionExpired))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("midtrans", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callbacks.WithLabelValues("midtrans", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redemptions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordQuote("free", false)
		m.RecordRejection(types.PromoRejectionNotFound)
		m.RecordRedemption()
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/tiers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tiers/family", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/tiers/:id", "200")))
}
