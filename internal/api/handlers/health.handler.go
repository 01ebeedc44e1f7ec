package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/version"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

type HealthHandler struct {
	cache  cache.ValkeyCluster // may be nil
	source metricsource.Source // may be nil
	logger logger.Logger
}

func NewHealthHandler(c cache.ValkeyCluster, source metricsource.Source, logger logger.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  c,
		source: source,
		logger: logger,
	}
}

// GET /health - Quick health check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   config.ServiceName,
		"version":   version.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - Readiness depends on the cache. The metrics source only feeds
// /analyze/live, so a failing source is reported as degraded, not unready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	ready := true

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["cache"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			ready = false
			h.logger.Warn("Readiness: cache unhealthy", "error", err)
		} else {
			checks["cache"] = map[string]interface{}{"status": "healthy"}
		}
	}

	if h.source != nil {
		if err := h.source.Ping(ctx); err != nil {
			checks["metrics_source"] = map[string]interface{}{"status": "degraded", "source": h.source.Name(), "error": err.Error()}
			h.logger.Warn("Readiness: metrics source unreachable", "source", h.source.Name(), "error", err)
		} else {
			checks["metrics_source"] = map[string]interface{}{"status": "healthy", "source": h.source.Name()}
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !ready {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   config.ServiceName,
		"version":   version.Version,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
