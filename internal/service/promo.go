package service

import (
	"context"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// PromoService manages promo codes from the admin dashboard
type PromoService interface {
	CreatePromoCode(ctx context.Context, req *dto.CreatePromoCodeRequest) (*dto.PromoCodeResponse, error)
	GetPromoCode(ctx context.Context, id string) (*dto.PromoCodeResponse, error)
	ListPromoCodes(ctx context.Context, filter *types.PromoCodeFilter) (*dto.ListPromoCodesResponse, error)
	UpdatePromoCode(ctx context.Context, id string, req *dto.UpdatePromoCodeRequest) (*dto.PromoCodeResponse, error)
	// TogglePromoCode flips the active flag
	TogglePromoCode(ctx context.Context, id string) (*dto.PromoCodeResponse, error)
	DeletePromoCode(ctx context.Context, id string) error
	ListRedemptions(ctx context.Context, id string, filter *types.QueryFilter) (*dto.ListPromoRedemptionsResponse, error)
	GetStats(ctx context.Context) (*dto.PromoStatsResponse, error)
}

type promoService struct {
	ServiceParams
}

func NewPromoService(params ServiceParams) PromoService {
	return &promoService{
		ServiceParams: params,
	}
}

func (s *promoService) CreatePromoCode(ctx context.Context, req *dto.CreatePromoCodeRequest) (*dto.PromoCodeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.ToPromoCode(ctx)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.Logger.Infow("creating promo code",
		"code", p.Code,
		"discount_type", p.DiscountType,
		"discount_value", p.DiscountValue.String(),
	)

	existing, err := s.PromoRepo.GetByCode(ctx, p.Code)
	if err == nil && existing != nil {
		return nil, ierr.NewError("promo code already exists").
			WithHintf("Promo code %s already exists", p.Code).
			WithReportableDetails(map[string]any{
				"code": p.Code,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := s.PromoRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	return dto.NewPromoCodeResponse(p, time.Now().UTC()), nil
}

func (s *promoService) GetPromoCode(ctx context.Context, id string) (*dto.PromoCodeResponse, error) {
	if id == "" {
		return nil, ierr.NewError("promo code id is required").
			WithHint("Promo code id is required").
			Mark(ierr.ErrValidation)
	}

	p, err := s.PromoRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return dto.NewPromoCodeResponse(p, time.Now().UTC()), nil
}

func (s *promoService) ListPromoCodes(ctx context.Context, filter *types.PromoCodeFilter) (*dto.ListPromoCodesResponse, error) {
	if filter == nil {
		filter = types.NewPromoCodeFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	codes, err := s.PromoRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.PromoRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := lo.Map(codes, func(p *promo.PromoCode, _ int) *dto.PromoCodeResponse {
		return dto.NewPromoCodeResponse(p, now)
	})

	response := types.NewListResponse(items, total, filter)
	return &response, nil
}

func (s *promoService) UpdatePromoCode(ctx context.Context, id string, req *dto.UpdatePromoCodeRequest) (*dto.PromoCodeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PromoRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(ctx, p)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.PromoRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("promo code updated", "promo_code_id", p.ID, "code", p.Code)
	return dto.NewPromoCodeResponse(p, time.Now().UTC()), nil
}

func (s *promoService) TogglePromoCode(ctx context.Context, id string) (*dto.PromoCodeResponse, error) {
	p, err := s.PromoRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.IsActive = !p.IsActive
	p.Touch(ctx, time.Now())

	if err := s.PromoRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("promo code toggled", "promo_code_id", p.ID, "code", p.Code, "is_active", p.IsActive)
	return dto.NewPromoCodeResponse(p, time.Now().UTC()), nil
}

func (s *promoService) DeletePromoCode(ctx context.Context, id string) error {
	if err := s.PromoRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("promo code archived", "promo_code_id", id)
	return nil
}

func (s *promoService) ListRedemptions(ctx context.Context, id string, filter *types.QueryFilter) (*dto.ListPromoRedemptionsResponse, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PromoRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.PromoRepo.ListRedemptions(ctx, p.ID, filter)
	if err != nil {
		return nil, err
	}

	// every redemption bumps current_uses exactly once
	response := types.NewListResponse(redemptions, p.CurrentUses, filter)
	return &response, nil
}

func (s *promoService) GetStats(ctx context.Context) (*dto.PromoStatsResponse, error) {
	stats, err := s.PromoRepo.GetStats(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &dto.PromoStatsResponse{Stats: stats}, nil
}
