package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/service"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	logger           *logger.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, logger *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// @Summary Billing dashboard
// @Description Subscriptions per tier, promo usage and revenue
// @Tags Dashboard
// @Produce json
// @Success 200 {object} dto.DashboardStatsResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /admin/dashboard [get]
// @Security ApiKeyAuth
func (h *DashboardHandler) GetDashboardStats(c *gin.Context) {
	response, err := h.dashboardService.GetDashboardStats(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to build dashboard stats", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
