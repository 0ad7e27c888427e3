package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency, a nil error means healthy
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	logger *logger.Logger
}

func NewHealthHandler(logger *logger.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

// @Summary Health check
// @Description Reports ok when every configured dependency answers
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	failed := make(map[string]string)
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warnw("health check failed", "dependency", check.Name, "error", err)
			failed[check.Name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
