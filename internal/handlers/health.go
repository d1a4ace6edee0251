package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Health returns a readiness payload. Every named check must answer within
// two seconds for the service to report ok.
func Health(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
		defer cancel()

		components := make(map[string]string, len(checks))
		healthy := true
		for name, ping := range checks {
			if ping == nil {
				continue
			}
			if err := ping(ctx); err != nil {
				healthy = false
				components[name] = "down"
				logger.WithModule("health").Warn("dependency check failed", zap.String("component", name), zap.Error(err))
				continue
			}
			components[name] = "up"
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Status:  response.StatusError,
				Code:    "SERVICE_UNAVAILABLE",
				Message: "One or more dependencies are unavailable",
				Data:    gin.H{"components": components},
			})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "components": components})
	}
}
