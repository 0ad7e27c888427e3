package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rumahku/billing/internal/types"
)

const namespace = "rumahku_billing"

// Metrics exposes the billing instruments. A nil *Metrics records nothing.
type Metrics struct {
	quotes        *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	redemptions   prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics registers the instruments on the default registerer
func NewMetrics() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Price quotes computed, by tier and whether a promo was applied.",
		}, []string{"tier", "promo_applied"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_rejections_total",
			Help:      "Promo codes refused, by rejection code.",
		}, []string{"code"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_store_failures_total",
			Help:      "Promo lookups that failed closed because the store was unavailable.",
		}, []string{"reason"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkouts created, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_results_total",
			Help:      "Payment results applied, by provider and result kind.",
		}, []string{"provider", "kind"}),
		redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_redemptions_total",
			Help:      "Promo codes redeemed at checkout.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(
		m.quotes,
		m.rejections,
		m.storeFailures,
		m.checkouts,
		m.callbacks,
		m.redemptions,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) RecordQuote(tierID string, promoApplied bool) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(tierID, strconv.FormatBool(promoApplied)).Inc()
}

func (m *Metrics) RecordRejection(code types.PromoRejectionCode) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(code)).Inc()
}

// RecordStoreFailure counts fail closed promo lookups, reason is timeout or error
func (m *Metrics) RecordStoreFailure(reason string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCheckout(provider types.PaymentProvider, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(string(provider), outcome).Inc()
}

func (m *Metrics) RecordPaymentResult(provider types.PaymentProvider, kind types.PaymentResultKind) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(string(provider), string(kind)).Inc()
}

func (m *Metrics) RecordRedemption() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}

// GinMiddleware records request counts and latency per matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
