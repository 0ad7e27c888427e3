package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Server side failures are logged with the internal message, the client only
// sees hints and reportable details.
func ErrorHandler(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		requestID := types.GetRequestID(c.Request.Context())
		status := ierr.HTTPStatusFromErr(err)

		if status >= http.StatusInternalServerError {
			logger.Errorw("request failed",
				"error", err,
				"status", status,
				"method", c.Request.Method,
				"path", c.FullPath(),
				"request_id", requestID)
		}

		c.JSON(status, ierr.NewErrorResponse(err, requestID))
	}
}
