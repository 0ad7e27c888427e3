package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
	"github.com/rumahku/billing/internal/types"
)

// maxNotificationBytes caps the body read from a gateway callback
const maxNotificationBytes = 1 << 20

// WebhookHandler receives payment gateway notifications
type WebhookHandler struct {
	paymentService service.PaymentService
	logger         *logger.Logger
}

func NewWebhookHandler(paymentService service.PaymentService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// @Summary Handle a payment gateway notification
// @Description Verifies and applies a midtrans, xendit or stripe callback. Repeated callbacks are acknowledged without effect.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "midtrans, xendit or stripe"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	provider := types.PaymentProvider(c.Param("provider"))
	if err := provider.Validate(); err != nil {
		c.Error(err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Errorw("failed to read notification body", "provider", provider, "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.paymentService.HandleNotification(c.Request.Context(), provider, body, c.Request.Header); err != nil {
		h.logger.Warnw("payment notification rejected", "provider", provider, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
