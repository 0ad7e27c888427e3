package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/api/dto"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
)

// PaymentHandler sweeps checkouts the payer abandoned
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *logger.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// @Summary Expire overdue payments
// @Description Closes pending transactions whose payment window has passed
// @Tags Cron
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.CronJobResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/cron/payments/expire [post]
func (h *PaymentHandler) ExpireOverduePayments(c *gin.Context) {
	started := time.Now().UTC()
	h.logger.Infow("starting payment expiry cron job", "as_of", started)

	expired, err := h.paymentService.ExpireOverdue(c.Request.Context(), started)
	if err != nil {
		h.logger.Errorw("payment expiry cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed payment expiry cron job",
		"expired", expired,
		"duration_ms", time.Since(started).Milliseconds())
	c.JSON(http.StatusOK, dto.CronJobResponse{Status: dto.CronJobStatusCompleted, Expired: expired})
}
