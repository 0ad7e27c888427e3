package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/api/dto"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/types"
)

type TierHandler struct {
	tierService service.TierService
	logger      *logger.Logger
}

func NewTierHandler(tierService service.TierService, logger *logger.Logger) *TierHandler {
	return &TierHandler{
		tierService: tierService,
		logger:      logger,
	}
}

// @Summary List tiers
// @Description Lists the subscription tiers in catalog order
// @Tags Tiers
// @Produce json
// @Success 200 {object} dto.ListTiersResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /tiers [get]
func (h *TierHandler) ListTiers(c *gin.Context) {
	response, err := h.tierService.ListTiers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Get a tier
// @Description Retrieves a tier by ID
// @Tags Tiers
// @Produce json
// @Param id path string true "Tier ID"
// @Success 200 {object} dto.TierResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /tiers/{id} [get]
func (h *TierHandler) GetTier(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("tier ID is required").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.tierService.GetTier(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Get a tier price
// @Description Resolves the base price of a tier for a billing period
// @Tags Tiers
// @Produce json
// @Param id path string true "Tier ID"
// @Param billing_period query string true "monthly or yearly"
// @Success 200 {object} dto.TierPriceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /tiers/{id}/price [get]
func (h *TierHandler) GetTierPrice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("tier ID is required").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	period := types.BillingPeriod(c.DefaultQuery("billing_period", string(types.BillingPeriodMonthly)))
	response, err := h.tierService.GetTierPrice(c.Request.Context(), id, period)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Create or update a tier
// @Description Upserts a catalog tier
// @Tags Tiers
// @Accept json
// @Produce json
// @Param tier body dto.UpsertTierRequest true "Tier request"
// @Success 200 {object} dto.TierResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/tiers [put]
// @Security ApiKeyAuth
func (h *TierHandler) UpsertTier(c *gin.Context) {
	var req dto.UpsertTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.tierService.UpsertTier(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
