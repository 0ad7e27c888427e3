package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/api/dto"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
)

type PricingHandler struct {
	pricingService service.PricingService
	logger         *logger.Logger
}

func NewPricingHandler(pricingService service.PricingService, logger *logger.Logger) *PricingHandler {
	return &PricingHandler{
		pricingService: pricingService,
		logger:         logger,
	}
}

// @Summary Quote a tier
// @Description Prices a tier and billing period with an optional promo code. A refused code fails the quote.
// @Tags Pricing
// @Produce json
// @Param filter query dto.QuoteRequest true "Quote request"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /pricing/quote [get]
func (h *PricingHandler) GetQuote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	quote, err := h.pricingService.Quote(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.QuoteResponse{Quote: quote})
}

// @Summary Validate a promo code
// @Description Checks a promo code against a tier. Rejections are reported in the body, not as errors.
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.ValidatePromoRequest true "Validation request"
// @Success 200 {object} dto.ValidatePromoResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /promo-codes/validate [post]
func (h *PricingHandler) ValidatePromoCode(c *gin.Context) {
	var req dto.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.pricingService.CheckPromoCode(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
