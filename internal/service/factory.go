package service

import (
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/idempotency"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/lock"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/metrics"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/sentry"
	"github.com/rumahku/billing/internal/svix"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	TierRepo    tier.Repository
	PromoRepo   promo.Repository
	PaymentRepo payment.Repository
	SubRepo     subscription.Repository

	// Payments
	Gateways    *base.Registry
	Locker      lock.Locker
	Idempotency *idempotency.Generator

	// Publishers
	WebhookPublisher svix.Publisher

	// Observability
	Metrics *metrics.Metrics
	Sentry  *sentry.Service
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	tierRepo tier.Repository,
	promoRepo promo.Repository,
	paymentRepo payment.Repository,
	subRepo subscription.Repository,
	gateways *base.Registry,
	locker lock.Locker,
	webhookPublisher svix.Publisher,
	metrics *metrics.Metrics,
	sentryService *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		TierRepo:         tierRepo,
		PromoRepo:        promoRepo,
		PaymentRepo:      paymentRepo,
		SubRepo:          subRepo,
		Gateways:         gateways,
		Locker:           locker,
		Idempotency:      idempotency.NewGenerator(),
		WebhookPublisher: webhookPublisher,
		Metrics:          metrics,
		Sentry:           sentryService,
	}
}
