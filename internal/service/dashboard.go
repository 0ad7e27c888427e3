package service

import (
	"context"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/promo"
	"github.com/rumahku/billing/internal/domain/subscription"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// DashboardService aggregates the admin overview
type DashboardService interface {
	GetDashboardStats(ctx context.Context) (*dto.DashboardStatsResponse, error)
}

type dashboardService struct {
	ServiceParams
}

func NewDashboardService(params ServiceParams) DashboardService {
	return &dashboardService{
		ServiceParams: params,
	}
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*dto.DashboardStatsResponse, error) {
	var (
		counts     []*subscription.TierCount
		promoStats *promo.Stats
		revenue    []*payment.Revenue
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		counts, err = s.SubRepo.CountByTierAndStatus(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		promoStats, err = s.PromoRepo.GetStats(ctx, time.Now().UTC())
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		revenue, err = s.PaymentRepo.SumRevenue(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		s.Logger.Errorw("failed to build dashboard stats", "error", err)
		return nil, err
	}

	activeByTier := make(map[string]int)
	for _, c := range counts {
		if c.SubscriptionStatus.IsLive() {
			activeByTier[c.TierID] += c.Count
		}
	}

	return &dto.DashboardStatsResponse{
		Subscriptions: lo.Ternary(counts == nil, []*subscription.TierCount{}, counts),
		ActiveByTier:  activeByTier,
		Promo:         promoStats,
		Revenue:       lo.Ternary(revenue == nil, []*payment.Revenue{}, revenue),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
