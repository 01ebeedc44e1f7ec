package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-rollout/internal/config"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for dashboard clients
func CORSMiddleware(corsConfig config.CORSConfig) gin.HandlerFunc {
	methods := "GET, POST, OPTIONS"
	if len(corsConfig.AllowedMethods) > 0 {
		methods = strings.Join(corsConfig.AllowedMethods, ", ")
	}
	headers := "Origin, Content-Type, Accept, Authorization, X-Request-ID"
	if len(corsConfig.AllowedHeaders) > 0 {
		headers = strings.Join(corsConfig.AllowedHeaders, ", ")
	}
	exposed := "X-Rate-Limit-Limit, X-Rate-Limit-Remaining, X-Rate-Limit-Reset, X-Request-ID, X-Cache, X-Analysis-ID"
	if len(corsConfig.ExposedHeaders) > 0 {
		exposed = strings.Join(corsConfig.ExposedHeaders, ", ")
	}
	maxAge := "43200" // 12 hours
	if corsConfig.MaxAge > 0 {
		maxAge = strconv.Itoa(corsConfig.MaxAge)
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if isOriginAllowed(origin, corsConfig.AllowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", exposed)
		if corsConfig.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// isOriginAllowed checks if the given origin is in the allowed origins list
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	if len(allowedOrigins) == 0 {
		// If no origins specified, allow local development origins
		return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	}

	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || origin == allowedOrigin {
			return true
		}
		// Support wildcard subdomains (e.g., *.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}

	return false
}
