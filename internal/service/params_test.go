package service

import (
	"github.com/rumahku/billing/internal/idempotency"
	"github.com/rumahku/billing/internal/testutil"
)

func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		TierRepo:         s.GetStores().TierRepo,
		PromoRepo:        s.GetStores().PromoRepo,
		PaymentRepo:      s.GetStores().PaymentRepo,
		SubRepo:          s.GetStores().SubscriptionRepo,
		Gateways:         s.GetGateways(),
		Locker:           s.GetLocker(),
		Idempotency:      idempotency.NewGenerator(),
		WebhookPublisher: s.GetWebhookPublisher(),
		Metrics:          s.GetMetrics(),
		Sentry:           s.GetSentry(),
	}
}
