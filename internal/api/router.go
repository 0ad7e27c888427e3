package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rumahku/billing/internal/api/cron"
	v1 "github.com/rumahku/billing/internal/api/v1"
	"github.com/rumahku/billing/internal/auth"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/metrics"
	"github.com/rumahku/billing/internal/pyroscope"
	"github.com/rumahku/billing/internal/rest/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Tier         *v1.TierHandler
	Pricing      *v1.PricingHandler
	Promo        *v1.PromoHandler
	Payment      *v1.PaymentHandler
	Subscription *v1.SubscriptionHandler
	Dashboard    *v1.DashboardHandler
	Webhook      *v1.WebhookHandler

	CronPayment      *cron.PaymentHandler
	CronSubscription *cron.SubscriptionHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	authProvider auth.Provider,
	adminVerifier *auth.AdminKeyVerifier,
	metrics *metrics.Metrics,
	pyroscopeService *pyroscope.Service,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware(cfg),
		middleware.SentryMiddleware(cfg),
		middleware.PyroscopeMiddleware(pyroscopeService),
		metrics.GinMiddleware(),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.POST("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Gateway callbacks authenticate through their own signatures
	router.POST("/webhooks/:provider", handlers.Webhook.HandleNotification)

	public := router.Group("/v1")
	{
		tiers := public.Group("/tiers")
		{
			tiers.GET("", handlers.Tier.ListTiers)
			tiers.GET("/:id", handlers.Tier.GetTier)
			tiers.GET("/:id/price", handlers.Tier.GetTierPrice)
		}

		public.GET("/pricing/quote", handlers.Pricing.GetQuote)
	}

	private := router.Group("/v1")
	private.Use(middleware.AuthenticateMiddleware(cfg, authProvider, logger))
	{
		private.POST("/promo-codes/validate", middleware.RateLimitMiddleware(cfg), handlers.Pricing.ValidatePromoCode)
		private.POST("/checkout", handlers.Payment.CreateCheckout)

		payments := private.Group("/payments")
		{
			payments.GET("", handlers.Payment.ListPayments)
			payments.GET("/:order_id", handlers.Payment.GetPayment)
			payments.POST("/:order_id/sync", handlers.Payment.SyncPayment)
			payments.POST("/:order_id/cancel", handlers.Payment.CancelPayment)
		}

		subscription := private.Group("/subscription")
		{
			subscription.GET("", handlers.Subscription.GetSubscription)
			subscription.GET("/history", handlers.Subscription.ListHistory)
			subscription.GET("/trial", handlers.Subscription.GetTrialStatus)
			subscription.POST("/trial", handlers.Subscription.StartTrial)
			subscription.POST("/cancel", handlers.Subscription.CancelSubscription)
		}
	}

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminAuthMiddleware(adminVerifier, logger))
	{
		admin.GET("/dashboard", handlers.Dashboard.GetDashboardStats)
		admin.PUT("/tiers", handlers.Tier.UpsertTier)

		promoCodes := admin.Group("/promo-codes")
		{
			promoCodes.POST("", handlers.Promo.CreatePromoCode)
			promoCodes.GET("", handlers.Promo.ListPromoCodes)
			promoCodes.GET("/stats", handlers.Promo.GetStats)
			promoCodes.GET("/:id", handlers.Promo.GetPromoCode)
			promoCodes.PUT("/:id", handlers.Promo.UpdatePromoCode)
			promoCodes.DELETE("/:id", handlers.Promo.DeletePromoCode)
			promoCodes.POST("/:id/toggle", handlers.Promo.TogglePromoCode)
			promoCodes.GET("/:id/redemptions", handlers.Promo.ListRedemptions)
		}

		admin.GET("/payments", handlers.Payment.ListPayments)
		admin.GET("/payments/:order_id", handlers.Payment.GetPayment)

		families := admin.Group("/families/:family_id")
		{
			families.GET("/subscription", handlers.Subscription.GetSubscription)
			families.GET("/subscription/history", handlers.Subscription.ListHistory)
			families.GET("/subscription/trial", handlers.Subscription.GetTrialStatus)
		}

		// Cron routes
		cronGroup := admin.Group("/cron")
		{
			cronGroup.POST("/payments/expire", handlers.CronPayment.ExpireOverduePayments)
			cronGroup.POST("/subscriptions/expire", handlers.CronSubscription.ExpireSubscriptions)
		}
	}

	return router
}
