package service

import (
	"context"
	"errors"
	"time"

	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/domain/pricing"
	"github.com/rumahku/billing/internal/domain/promo"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// PricingService resolves what a family pays for a tier
type PricingService interface {
	// GetTierPrice returns the base amount of a tier for a billing period
	GetTierPrice(ctx context.Context, tierID string, period types.BillingPeriod) (int64, error)

	// ValidatePromoCode checks a code against the store for tierID at now.
	// A refused code returns a promo rejection error, an unreachable store
	// returns ErrUnavailable and never a discount.
	ValidatePromoCode(ctx context.Context, code, tierID string, baseAmount int64, now time.Time) (*pricing.ValidatedPromo, error)

	// CheckPromoCode is the public validation endpoint, rejections are data
	CheckPromoCode(ctx context.Context, req *dto.ValidatePromoRequest) (*dto.ValidatePromoResponse, error)

	// ComputeQuote applies a validated promo to a base amount
	ComputeQuote(baseAmount int64, validated *pricing.ValidatedPromo) pricing.Breakdown

	// Quote runs tier lookup, promo validation and discount calculation
	Quote(ctx context.Context, req *dto.QuoteRequest) (*pricing.Quote, error)
}

type pricingService struct {
	ServiceParams
}

func NewPricingService(params ServiceParams) PricingService {
	return &pricingService{
		ServiceParams: params,
	}
}

func (s *pricingService) GetTierPrice(ctx context.Context, tierID string, period types.BillingPeriod) (int64, error) {
	price, err := NewTierService(s.ServiceParams).GetTierPrice(ctx, tierID, period)
	if err != nil {
		return 0, err
	}
	return price.Amount, nil
}

func (s *pricingService) ValidatePromoCode(ctx context.Context, code, tierID string, baseAmount int64, now time.Time) (*pricing.ValidatedPromo, error) {
	normalized := promo.NormalizeCode(code)
	if normalized == "" {
		s.Metrics.RecordRejection(types.PromoRejectionNotFound)
		return nil, promo.NewRejectionError(types.PromoRejectionNotFound, normalized)
	}

	p, err := s.lookupPromoCode(ctx, normalized)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Metrics.RecordRejection(types.PromoRejectionNotFound)
			return nil, promo.NewRejectionError(types.PromoRejectionNotFound, normalized)
		}
		return nil, err
	}

	if rejection, ok := p.Check(tierID, now); !ok {
		s.Logger.Debugw("promo code rejected",
			"code", normalized,
			"tier_id", tierID,
			"reason", rejection,
		)
		s.Metrics.RecordRejection(rejection)
		return nil, promo.NewRejectionError(rejection, normalized)
	}

	return pricing.NewValidatedPromo(p, baseAmount), nil
}

type promoLookup struct {
	promo *promo.PromoCode
	err   error
}

// lookupPromoCode reads a code within the configured store timeout. Anything
// other than a clean hit or a clean miss is reported as ErrUnavailable so the
// caller fails closed.
func (s *pricingService) lookupPromoCode(ctx context.Context, code string) (*promo.PromoCode, error) {
	timeout := s.Config.Billing.StoreTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// the hosted store client ignores ctx, so the deadline is enforced here
	done := make(chan promoLookup, 1)
	go func() {
		p, err := s.PromoRepo.GetByCode(ctx, code)
		done <- promoLookup{promo: p, err: err}
	}()

	select {
	case <-ctx.Done():
		reason := "canceled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		s.Metrics.RecordStoreFailure(reason)
		s.Logger.Warnw("promo store lookup abandoned", "code", code, "reason", reason)
		return nil, ierr.WithError(ctx.Err()).
			WithHint("Promo codes cannot be checked right now, please try again").
			WithReportableDetails(map[string]any{
				"code": code,
			}).
			Mark(ierr.ErrUnavailable)
	case res := <-done:
		if res.err == nil {
			return res.promo, nil
		}
		if ierr.IsNotFound(res.err) {
			return nil, res.err
		}
		s.Metrics.RecordStoreFailure("error")
		s.Logger.Errorw("promo store lookup failed", "code", code, "error", res.err)
		return nil, ierr.WithError(res.err).
			WithHint("Promo codes cannot be checked right now, please try again").
			WithReportableDetails(map[string]any{
				"code": code,
			}).
			Mark(ierr.ErrUnavailable)
	}
}

func (s *pricingService) CheckPromoCode(ctx context.Context, req *dto.ValidatePromoRequest) (*dto.ValidatePromoResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	baseAmount, err := s.GetTierPrice(ctx, req.TierID, req.BillingPeriod)
	if err != nil {
		return nil, err
	}

	normalized := promo.NormalizeCode(req.Code)
	validated, err := s.ValidatePromoCode(ctx, normalized, req.TierID, baseAmount, time.Now().UTC())
	if err != nil {
		if rejection, ok := promo.RejectionCodeFromError(err); ok {
			return &dto.ValidatePromoResponse{
				Valid:         false,
				Code:          normalized,
				RejectionCode: rejection,
				Message:       rejection.Message(),
			}, nil
		}
		return nil, err
	}

	return &dto.ValidatePromoResponse{
		Valid:          true,
		Code:           validated.Code,
		DiscountType:   validated.Promo.DiscountType,
		DiscountValue:  lo.ToPtr(validated.Promo.DiscountValue),
		DiscountAmount: validated.DiscountAmount,
	}, nil
}

func (s *pricingService) ComputeQuote(baseAmount int64, validated *pricing.ValidatedPromo) pricing.Breakdown {
	return pricing.ComputeQuote(baseAmount, validated)
}

func (s *pricingService) Quote(ctx context.Context, req *dto.QuoteRequest) (*pricing.Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	price, err := NewTierService(s.ServiceParams).GetTierPrice(ctx, req.TierID, req.BillingPeriod)
	if err != nil {
		return nil, err
	}

	var validated *pricing.ValidatedPromo
	if promo.NormalizeCode(req.PromoCode) != "" {
		validated, err = s.ValidatePromoCode(ctx, req.PromoCode, price.TierID, price.Amount, time.Now().UTC())
		if err != nil {
			return nil, err
		}
	}

	breakdown := s.ComputeQuote(price.Amount, validated)
	quote := pricing.NewQuote(price.TierID, req.BillingPeriod, price.Currency, breakdown, validated)

	s.Metrics.RecordQuote(quote.TierID, quote.AppliedCode != nil)
	s.Logger.Debugw("quote computed",
		"tier_id", quote.TierID,
		"billing_period", quote.BillingPeriod,
		"base_amount", quote.BaseAmount,
		"discount_amount", quote.DiscountAmount,
		"final_amount", quote.FinalAmount,
		"promo_code", lo.FromPtr(quote.AppliedCode),
	)
	return quote, nil
}
