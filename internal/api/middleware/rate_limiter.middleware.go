package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// RateLimiter implements per-client fixed-window rate limiting on the Valkey
// cache. Cache failures let the request through.
func RateLimiter(valkeyCache cache.ValkeyCluster, cfg config.RateLimitConfig, log logger.Logger) gin.HandlerFunc {
	maxRequests := int64(cfg.Requests)
	if maxRequests <= 0 {
		maxRequests = config.DefaultRateLimit
	}
	window := cfg.Window
	if window <= 0 {
		window = config.DefaultRateLimitWindow
	}

	return func(c *gin.Context) {
		key := "rate_limit:" + c.ClientIP()

		count, err := valkeyCache.IncrWindow(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("Rate limiter unavailable; allowing request", "client_ip", c.ClientIP(), "error", err)
			c.Next()
			return
		}

		reset := time.Now().Add(window).Unix()
		c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequests, 10))
		c.Header("X-Rate-Limit-Reset", strconv.FormatInt(reset, 10))

		if count > maxRequests {
			c.Header("X-Rate-Limit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"error":       "Rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			c.Abort()
			return
		}

		c.Header("X-Rate-Limit-Remaining", strconv.FormatInt(maxRequests-count, 10))
		c.Next()
	}
}
