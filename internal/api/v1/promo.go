package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/api/dto"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

type PromoHandler struct {
	promoService service.PromoService
	logger       *logger.Logger
}

func NewPromoHandler(promoService service.PromoService, logger *logger.Logger) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
		logger:       logger,
	}
}

// @Summary Create a promo code
// @Description Creates a promo code, the code is stored uppercase
// @Tags Promo Codes
// @Accept json
// @Produce json
// @Param promo body dto.CreatePromoCodeRequest true "Promo code request"
// @Success 201 {object} dto.PromoCodeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes [post]
// @Security ApiKeyAuth
func (h *PromoHandler) CreatePromoCode(c *gin.Context) {
	var req dto.CreatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.promoService.CreatePromoCode(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// @Summary Get a promo code
// @Description Retrieves a promo code by ID
// @Tags Promo Codes
// @Produce json
// @Param id path string true "Promo code ID"
// @Success 200 {object} dto.PromoCodeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/{id} [get]
// @Security ApiKeyAuth
func (h *PromoHandler) GetPromoCode(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("promo code ID is required").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.promoService.GetPromoCode(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary List promo codes
// @Description Lists promo codes with optional filtering
// @Tags Promo Codes
// @Produce json
// @Param filter query types.PromoCodeFilter false "Filter"
// @Success 200 {object} dto.ListPromoCodesResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes [get]
// @Security ApiKeyAuth
func (h *PromoHandler) ListPromoCodes(c *gin.Context) {
	filter := types.NewPromoCodeFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.Limit == nil {
		filter.Limit = lo.ToPtr(types.FILTER_DEFAULT_LIMIT)
	}

	response, err := h.promoService.ListPromoCodes(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Update a promo code
// @Description Updates an existing promo code, the usage counter is never overwritten
// @Tags Promo Codes
// @Accept json
// @Produce json
// @Param id path string true "Promo code ID"
// @Param promo body dto.UpdatePromoCodeRequest true "Promo code update request"
// @Success 200 {object} dto.PromoCodeResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/{id} [put]
// @Security ApiKeyAuth
func (h *PromoHandler) UpdatePromoCode(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("promo code ID is required").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.UpdatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.promoService.UpdatePromoCode(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Toggle a promo code
// @Description Flips the active flag of a promo code
// @Tags Promo Codes
// @Produce json
// @Param id path string true "Promo code ID"
// @Success 200 {object} dto.PromoCodeResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/{id}/toggle [post]
// @Security ApiKeyAuth
func (h *PromoHandler) TogglePromoCode(c *gin.Context) {
	response, err := h.promoService.TogglePromoCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Delete a promo code
// @Description Archives a promo code, its redemptions are kept
// @Tags Promo Codes
// @Produce json
// @Param id path string true "Promo code ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/{id} [delete]
// @Security ApiKeyAuth
func (h *PromoHandler) DeletePromoCode(c *gin.Context) {
	if err := h.promoService.DeletePromoCode(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "promo code deleted successfully"})
}

// @Summary List promo code redemptions
// @Description Lists redemptions of a promo code, newest first
// @Tags Promo Codes
// @Produce json
// @Param id path string true "Promo code ID"
// @Param filter query types.QueryFilter false "Pagination"
// @Success 200 {object} dto.ListPromoRedemptionsResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/{id}/redemptions [get]
// @Security ApiKeyAuth
func (h *PromoHandler) ListRedemptions(c *gin.Context) {
	filter := types.NewDefaultQueryFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.promoService.ListRedemptions(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Promo code statistics
// @Description Counts codes and uses across the catalog
// @Tags Promo Codes
// @Produce json
// @Success 200 {object} dto.PromoStatsResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/promo-codes/stats [get]
// @Security ApiKeyAuth
func (h *PromoHandler) GetStats(c *gin.Context) {
	response, err := h.promoService.GetStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
