package repository

import (
	"github.com/nedpals/supabase-go"
	"github.com/rumahku/billing/internal/cache"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/rumahku/billing/internal/domain/tier"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	postgresRepo "github.com/rumahku/billing/internal/repository/postgres"
	supabaseRepo "github.com/rumahku/billing/internal/repository/supabase"
	"github.com/rumahku/billing/internal/types"
	"go.uber.org/fx"
)

// RepositoryParams holds the store handles, exactly one of DB and Supabase is
// non-nil depending on the configured store provider
type RepositoryParams struct {
	fx.In

	Config   *config.Configuration
	Logger   *logger.Logger
	DB       *postgres.DB     `optional:"true"`
	Supabase *supabase.Client `optional:"true"`
	Cache    cache.Cache
}

func (p RepositoryParams) useSupabase() bool {
	return p.Config.Store.Provider == types.StoreProviderSupabase
}

func NewTierRepository(p RepositoryParams) tier.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewTierRepository(p.Supabase, p.Logger, p.Cache, p.Config.Cache.TTL)
	}
	return postgresRepo.NewTierRepository(p.DB, p.Logger, p.Cache, p.Config.Cache.TTL)
}

func NewPromoRepository(p RepositoryParams) promo.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewPromoRepository(p.Supabase, p.Logger, p.Cache, p.Config.Cache.TTL)
	}
	return postgresRepo.NewPromoRepository(p.DB, p.Logger, p.Cache, p.Config.Cache.TTL)
}

func NewPaymentRepository(p RepositoryParams) payment.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewPaymentRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewPaymentRepository(p.DB, p.Logger)
}

func NewSubscriptionRepository(p RepositoryParams) subscription.Repository {
	if p.useSupabase() {
		return supabaseRepo.NewSubscriptionRepository(p.Supabase, p.Logger)
	}
	return postgresRepo.NewSubscriptionRepository(p.DB, p.Logger)
}

// Module provides every repository for the configured store
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			supabaseRepo.NewClient,
			NewTierRepository,
			NewPromoRepository,
			NewPaymentRepository,
			NewSubscriptionRepository,
		),
	)
}
