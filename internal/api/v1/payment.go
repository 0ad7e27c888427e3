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

// @Summary Create a checkout
// @Description Prices the tier, redeems the promo code and opens a gateway checkout for the caller's family
// @Tags Payments
// @Accept json
// @Produce json
// @Param checkout body dto.CreateCheckoutRequest true "Checkout request"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /checkout [post]
// @Security BearerAuth
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.paymentService.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusCreated
	if response.Reused {
		status = http.StatusOK
	}
	c.JSON(status, response)
}

// @Summary Get a payment
// @Description Retrieves a payment transaction by order ID
// @Tags Payments
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} dto.PaymentTransactionResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /payments/{order_id} [get]
// @Security BearerAuth
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	response, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary List payments
// @Description Lists payment transactions, members only see their own family
// @Tags Payments
// @Produce json
// @Param filter query types.PaymentTransactionFilter false "Filter"
// @Success 200 {object} dto.ListPaymentTransactionsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /payments [get]
// @Security BearerAuth
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	filter := types.NewPaymentTransactionFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.paymentService.ListPayments(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Sync a payment
// @Description Polls the gateway for the status of a pending payment and applies it
// @Tags Payments
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} dto.PaymentTransactionResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /payments/{order_id}/sync [post]
// @Security BearerAuth
func (h *PaymentHandler) SyncPayment(c *gin.Context) {
	response, err := h.paymentService.SyncPaymentStatus(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Cancel a payment
// @Description Cancels a pending checkout at the gateway and locally
// @Tags Payments
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} dto.PaymentTransactionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{order_id}/cancel [post]
// @Security BearerAuth
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	response, err := h.paymentService.CancelPayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
