package testutil

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/lock"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/metrics"
	"github.com/rumahku/billing/internal/sentry"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	TierRepo         tier.Repository
	PromoRepo        promo.Repository
	PaymentRepo      payment.Repository
	SubscriptionRepo subscription.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	webhookPublisher *InMemoryWebhookPublisher
	db               *MockPostgresClient
	logger           *logger.Logger
	config           *config.Configuration
	locker           lock.Locker
	metrics          *metrics.Metrics
	sentry           *sentry.Service
	midtrans         *MockGateway
	xendit           *MockGateway
	gateways         *base.Registry
	now              time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.logger = logger.NewNoopLogger()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.now = time.Now().UTC()
	s.setupStores()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		TierRepo:         NewInMemoryTierStore(),
		PromoRepo:        NewInMemoryPromoStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
	}

	tiers, err := tier.FromConfig(config.DefaultTiers(), s.config.Billing.Currency)
	s.Require().NoError(err)
	for _, t := range tiers {
		s.Require().NoError(s.stores.TierRepo.Upsert(s.ctx, t))
	}

	s.db = NewMockPostgresClient(s.logger)
	s.webhookPublisher = NewInMemoryWebhookPublisher()
	s.locker = lock.NewLocalLocker()
	// a fresh registry per test keeps collector registration from colliding
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.midtrans = NewMockGateway(types.PaymentProviderMidtrans)
	s.xendit = NewMockGateway(types.PaymentProviderXendit)
	s.gateways = base.NewRegistry(s.config.Payment.DefaultProvider)
	s.gateways.Register(s.midtrans)
	s.gateways.Register(s.xendit)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.TierRepo.(*InMemoryTierStore).Clear()
	s.stores.PromoRepo.(*InMemoryPromoStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.webhookPublisher.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetAdminContext returns a context carrying the admin role
func (s *BaseServiceTestSuite) GetAdminContext() context.Context {
	return SetupAdminContext()
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetWebhookPublisher returns the recording webhook publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() *InMemoryWebhookPublisher {
	return s.webhookPublisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetLocker returns the in-process checkout locker
func (s *BaseServiceTestSuite) GetLocker() lock.Locker {
	return s.locker
}

// GetMetrics returns the per test metrics
func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetSentry returns the disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetGateways returns the registry holding the mock gateways
func (s *BaseServiceTestSuite) GetGateways() *base.Registry {
	return s.gateways
}

// GetMidtrans returns the mock registered as the default provider
func (s *BaseServiceTestSuite) GetMidtrans() *MockGateway {
	return s.midtrans
}

// GetXendit returns the mock registered for xendit
func (s *BaseServiceTestSuite) GetXendit() *MockGateway {
	return s.xendit
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
