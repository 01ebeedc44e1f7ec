package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-rollout/internal/api/middleware"
	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout/detect"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/internal/version"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

type RolloutHandler struct {
	service *services.RolloutService
	logger  logger.Logger
}

func NewRolloutHandler(service *services.RolloutService, logger logger.Logger) *RolloutHandler {
	return &RolloutHandler{
		service: service,
		logger:  logger,
	}
}

type validatable interface {
	Validate() error
}

// bindRequest decodes the JSON body into req and runs its checks. On failure
// it writes the 400 response and returns false.
func bindRequest(c *gin.Context, req validatable) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func respond(c *gin.Context, data interface{}, meta services.AnalysisMeta) {
	c.Set(middleware.AnalysisIDKey, meta.ID)
	c.Header("X-Analysis-ID", meta.ID)
	if meta.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	if meta.Degraded {
		c.Header("X-Analysis-Degraded", "true")
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"data":      data,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// POST /api/v1/rollout-intelligence/detect-anomalies
func (h *RolloutHandler) DetectAnomalies(c *gin.Context) {
	var req models.AnomalyDetectionRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta := h.service.DetectAnomalies(c.Request.Context(), req)
	respond(c, resp, meta)
}

// POST /api/v1/rollout-intelligence/predict
func (h *RolloutHandler) Predict(c *gin.Context) {
	var req models.RolloutPredictionRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta := h.service.PredictSuccess(c.Request.Context(), req)
	respond(c, resp, meta)
}

// POST /api/v1/rollout-intelligence/simulate
func (h *RolloutHandler) Simulate(c *gin.Context) {
	var req models.RolloutSimulationRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta := h.service.Simulate(c.Request.Context(), req)
	respond(c, resp, meta)
}

// POST /api/v1/rollout-intelligence/recommendations
func (h *RolloutHandler) Recommendations(c *gin.Context) {
	var req models.RolloutRecommendationRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta := h.service.Recommend(c.Request.Context(), req)
	respond(c, resp, meta)
}

// POST /api/v1/rollout-intelligence/analyze
func (h *RolloutHandler) Analyze(c *gin.Context) {
	var req models.RealtimeAnalysisRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta := h.service.AnalyzeRealtime(c.Request.Context(), req)
	respond(c, resp, meta)
}

// POST /api/v1/rollout-intelligence/analyze/live - realtime analysis on
// metrics read from the configured source
func (h *RolloutHandler) AnalyzeLive(c *gin.Context) {
	var req models.LiveAnalysisRequest
	if !bindRequest(c, &req) {
		return
	}
	resp, meta, err := h.service.AnalyzeLive(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrSourceUnavailable) {
			c.Status(http.StatusBadGateway)
		}
		_ = c.Error(err)
		return
	}
	respond(c, resp, meta)
}

// GET /api/v1/rollout-intelligence/health
func (h *RolloutHandler) Health(c *gin.Context) {
	engine := h.service.Engine()
	analyzers := make([]string, 0, 6)
	for _, m := range engine.Models() {
		analyzers = append(analyzers, m.Name)
	}

	source := "none"
	if src := h.service.Source(); src != nil {
		source = src.Name()
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"status":            "healthy",
			"service":           config.ServiceName,
			"version":           version.Version,
			"analyzers":         analyzers,
			"anomalyAlgorithm":  engine.Anomaly.Algorithm(),
			"analysisTimeoutMs": h.service.Timeout().Milliseconds(),
			"metricsSource":     source,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /api/v1/rollout-intelligence/models
func (h *RolloutHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"models":            h.service.Engine().Models(),
			"anomalyAlgorithms": detect.Algorithms,
			"optimizationGoals": []string{models.StrategyConservative, models.StrategyBalanced, models.StrategyAggressive},
			"stepActions":       models.RolloutActions,
			"liveActions":       models.LiveActions,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
