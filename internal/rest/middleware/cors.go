package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/types"
)

// CORSMiddleware allows the configured origins, or every origin when none are set
func CORSMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		types.HeaderAuthorization,
		types.HeaderRequestID,
		types.HeaderFamilyID,
		types.HeaderAPIKey,
	}
	corsConfig.ExposeHeaders = []string{types.HeaderRequestID}
	corsConfig.MaxAge = 24 * time.Hour

	return cors.New(corsConfig)
}
