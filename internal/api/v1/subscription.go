package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/types"
)

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	logger              *logger.Logger
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// familyID is the authenticated family, admins may name one in the path
func familyID(c *gin.Context) string {
	if id := c.Param("family_id"); id != "" && types.IsAdmin(c.Request.Context()) {
		return id
	}
	return types.GetFamilyID(c.Request.Context())
}

// @Summary Get the family subscription
// @Description Returns the subscription, its tier and trial status
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscription [get]
// @Security BearerAuth
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	response, err := h.subscriptionService.GetSubscription(c.Request.Context(), familyID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Subscription history
// @Description Lists the subscription changes of the family, newest first
// @Tags Subscriptions
// @Produce json
// @Param filter query types.QueryFilter false "Pagination"
// @Success 200 {object} dto.ListSubscriptionHistoryResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /subscription/history [get]
// @Security BearerAuth
func (h *SubscriptionHandler) ListHistory(c *gin.Context) {
	filter := types.NewDefaultQueryFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.subscriptionService.ListHistory(c.Request.Context(), familyID(c), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Trial status
// @Description Reports whether the family is in a trial and how many days remain
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} dto.TrialStatusResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /subscription/trial [get]
// @Security BearerAuth
func (h *SubscriptionHandler) GetTrialStatus(c *gin.Context) {
	response, err := h.subscriptionService.GetTrialStatus(c.Request.Context(), familyID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Start a trial
// @Description Starts the free trial for a family that never had a subscription
// @Tags Subscriptions
// @Produce json
// @Success 201 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /subscription/trial [post]
// @Security BearerAuth
func (h *SubscriptionHandler) StartTrial(c *gin.Context) {
	response, err := h.subscriptionService.StartTrial(c.Request.Context(), familyID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// @Summary Cancel the subscription
// @Description Cancels the family subscription, access stays until it expires
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscription/cancel [post]
// @Security BearerAuth
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	response, err := h.subscriptionService.Cancel(c.Request.Context(), familyID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
