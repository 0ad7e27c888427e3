package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rumahku/billing/internal/api"
	"github.com/rumahku/billing/internal/api/cron"
	v1 "github.com/rumahku/billing/internal/api/v1"
	"github.com/rumahku/billing/internal/auth"
	"github.com/rumahku/billing/internal/cache"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/httpclient"
	"github.com/rumahku/billing/internal/integration"
	"github.com/rumahku/billing/internal/lock"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/metrics"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/pyroscope"
	redisClient "github.com/rumahku/billing/internal/redis"
	"github.com/rumahku/billing/internal/repository"
	"github.com/rumahku/billing/internal/sentry"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/svix"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
	"go.uber.org/fx"
)

// @title Rumahku Billing API
// @version 1.0
// @description Subscription pricing, promo codes and payments for Rumahku families
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// Request validation is package level, register custom tags first
	validator.NewValidator()

	// Initialize Fx application
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Redis and cache
			redisClient.NewClient,
			cache.Initialize,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Payment gateways and checkout lock
			integration.NewGatewayRegistry,
			provideLocker,

			// Webhooks
			svix.NewClient,
			svix.NewPublisher,

			// Auth
			auth.NewProvider,
			auth.NewAdminKeyVerifier,

			// Metrics
			metrics.NewMetrics,
		),
	)

	// Monitoring
	opts = append(opts, sentry.Module(), pyroscope.Module())

	// Stores
	opts = append(opts, postgres.Module(), repository.Module())

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewTierService,
			service.NewPricingService,
			service.NewPromoService,
			service.NewSubscriptionService,
			service.NewPaymentService,
			service.NewDashboardService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHealthChecks,
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			seedCatalog,
			closeDB,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLocker(client redis.UniversalClient) lock.Locker {
	return lock.NewLocker(client)
}

func provideHealthChecks(db *postgres.DB, client redis.UniversalClient) []v1.HealthCheck {
	var checks []v1.HealthCheck
	if db != nil {
		checks = append(checks, v1.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if client != nil {
		checks = append(checks, v1.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}

func provideHandlers(
	logger *logger.Logger,
	healthChecks []v1.HealthCheck,
	tierService service.TierService,
	pricingService service.PricingService,
	promoService service.PromoService,
	paymentService service.PaymentService,
	subscriptionService service.SubscriptionService,
	dashboardService service.DashboardService,
) api.Handlers {
	return api.Handlers{
		Health:           v1.NewHealthHandler(logger, healthChecks...),
		Tier:             v1.NewTierHandler(tierService, logger),
		Pricing:          v1.NewPricingHandler(pricingService, logger),
		Promo:            v1.NewPromoHandler(promoService, logger),
		Payment:          v1.NewPaymentHandler(paymentService, logger),
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, logger),
		Dashboard:        v1.NewDashboardHandler(dashboardService, logger),
		Webhook:          v1.NewWebhookHandler(paymentService, logger),
		CronPayment:      cron.NewPaymentHandler(paymentService, logger),
		CronSubscription: cron.NewSubscriptionHandler(subscriptionService, logger),
	}
}

// seedCatalog upserts the configured tiers before the server accepts traffic
func seedCatalog(lc fx.Lifecycle, cfg *config.Configuration, tierService service.TierService, log *logger.Logger) {
	if !cfg.Catalog.SeedOnStart {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("seeding tier catalog", "tiers", len(cfg.Catalog.Tiers))
			return tierService.SeedCatalog(ctx)
		},
	})
}

func closeDB(lc fx.Lifecycle, db *postgres.DB, log *logger.Logger) {
	if db == nil {
		return
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing postgres pool")
			db.Close()
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}
