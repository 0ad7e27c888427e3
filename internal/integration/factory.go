package integration

import (
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/httpclient"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/integration/midtrans"
	"github.com/rumahku/billing/internal/integration/stripe"
	"github.com/rumahku/billing/internal/integration/xendit"
	"github.com/rumahku/billing/internal/logger"
)

// NewGatewayRegistry registers every payment gateway enabled in config
func NewGatewayRegistry(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) *base.Registry {
	registry := base.NewRegistry(cfg.Payment.DefaultProvider)

	if cfg.Payment.Midtrans.Enabled {
		registry.Register(midtrans.NewGateway(cfg.Payment.Midtrans, client, logger))
	}
	if cfg.Payment.Xendit.Enabled {
		registry.Register(xendit.NewGateway(cfg.Payment.Xendit, client, logger))
	}
	if cfg.Payment.Stripe.Enabled {
		registry.Register(stripe.NewGateway(cfg.Payment.Stripe, logger))
	}

	logger.Infow("payment gateways registered",
		"providers", registry.Providers(),
		"default", cfg.Payment.DefaultProvider,
	)
	return registry
}
