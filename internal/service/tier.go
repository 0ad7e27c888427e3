package service

import (
	"context"
	"sort"
	"strings"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/tier"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// TierService exposes the tier catalog
type TierService interface {
	GetTier(ctx context.Context, id string) (*dto.TierResponse, error)
	ListTiers(ctx context.Context) (*dto.ListTiersResponse, error)
	UpsertTier(ctx context.Context, req *dto.UpsertTierRequest) (*dto.TierResponse, error)
	// GetTierPrice resolves a tier and billing period into a base amount
	GetTierPrice(ctx context.Context, id string, period types.BillingPeriod) (*dto.TierPriceResponse, error)
	// SeedCatalog upserts the configured catalog into the store
	SeedCatalog(ctx context.Context) error
}

type tierService struct {
	ServiceParams
}

func NewTierService(params ServiceParams) TierService {
	return &tierService{
		ServiceParams: params,
	}
}

func (s *tierService) GetTier(ctx context.Context, id string) (*dto.TierResponse, error) {
	t, err := s.getTier(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.TierResponse{Tier: t}, nil
}

func (s *tierService) getTier(ctx context.Context, id string) (*tier.Tier, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, ierr.NewError("tier id is required").
			WithHint("Please select a plan").
			Mark(ierr.ErrValidation)
	}

	t, err := s.TierRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Plan %s does not exist", id).
				WithReportableDetails(map[string]any{
					"tier_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *tierService) ListTiers(ctx context.Context) (*dto.ListTiersResponse, error) {
	tiers, err := s.TierRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].SortOrder < tiers[j].SortOrder
	})

	items := lo.Map(tiers, func(t *tier.Tier, _ int) *dto.TierResponse {
		return &dto.TierResponse{Tier: t}
	})
	response := types.NewListResponse(items, len(items), nil)
	return &response, nil
}

func (s *tierService) UpsertTier(ctx context.Context, req *dto.UpsertTierRequest) (*dto.TierResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := req.ToTier(ctx, s.Config.Billing.Currency)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.TierRepo.Get(ctx, t.ID); err == nil {
		t.CreatedAt = existing.CreatedAt
		t.CreatedBy = existing.CreatedBy
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := s.TierRepo.Upsert(ctx, t); err != nil {
		return nil, err
	}

	s.Logger.Infow("tier upserted",
		"tier_id", t.ID,
		"monthly_price", t.MonthlyPrice,
		"yearly_price", t.YearlyPrice,
	)
	return &dto.TierResponse{Tier: t}, nil
}

func (s *tierService) GetTierPrice(ctx context.Context, id string, period types.BillingPeriod) (*dto.TierPriceResponse, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	t, err := s.getTier(ctx, id)
	if err != nil {
		return nil, err
	}

	amount, err := t.PriceFor(period)
	if err != nil {
		return nil, err
	}

	return &dto.TierPriceResponse{
		TierID:        t.ID,
		BillingPeriod: period,
		Currency:      lo.CoalesceOrEmpty(t.Currency, s.Config.Billing.Currency),
		Amount:        amount,
	}, nil
}

func (s *tierService) SeedCatalog(ctx context.Context) error {
	tiers, err := tier.FromConfig(s.Config.Catalog.Tiers, s.Config.Billing.Currency)
	if err != nil {
		return err
	}

	for _, t := range tiers {
		if err := s.TierRepo.Upsert(ctx, t); err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to seed tier %s", t.ID).
				Mark(ierr.ErrDatabase)
		}
	}

	s.Logger.Infow("tier catalog seeded", "tiers", lo.Map(tiers, func(t *tier.Tier, _ int) string { return t.ID }))
	return nil
}
