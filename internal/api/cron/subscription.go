package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
)

// SubscriptionHandler sweeps trials and paid periods that ran out
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

// @Summary Expire subscriptions
// @Description Moves trials and paid periods past their end date to expired
// @Tags Cron
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.CronJobResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/cron/subscriptions/expire [post]
func (h *SubscriptionHandler) ExpireSubscriptions(c *gin.Context) {
	started := time.Now().UTC()
	h.logger.Infow("starting subscription expiry cron job", "as_of", started)

	expired, err := h.subscriptionService.ExpireDue(c.Request.Context(), started)
	if err != nil {
		h.logger.Errorw("subscription expiry cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed subscription expiry cron job",
		"expired", expired,
		"duration_ms", time.Since(started).Milliseconds())
	c.JSON(http.StatusOK, dto.CronJobResponse{Status: dto.CronJobStatusCompleted, Expired: expired})
}
