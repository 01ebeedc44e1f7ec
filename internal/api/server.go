package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/platformbuilds/mirador-rollout/internal/api/handlers"
	"github.com/platformbuilds/mirador-rollout/internal/api/middleware"
	"github.com/platformbuilds/mirador-rollout/internal/api/websocket"
	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/monitoring"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// RoutePrefix is the base path of the rollout intelligence API.
const RoutePrefix = "/api/v1/rollout-intelligence"

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCluster
	service    *services.RolloutService
	streams    *websocket.Hub
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.ValkeyCluster,
	service *services.RolloutService,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:  cfg,
		logger:  log,
		cache:   valkeyCache,
		service: service,
		streams: websocket.NewHub(cfg.WebSocket.MaxConnections, log),
		router:  router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// CORS for dashboard clients
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	// Request ids and logging
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))

	// Prometheus request metrics
	if s.config.Monitoring.Enabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
	}

	// Rate limiting using the Valkey cache
	if s.config.RateLimit.Enabled && s.cache != nil {
		s.router.Use(middleware.RateLimiter(s.cache, s.config.RateLimit, s.logger))
	}

	// Errors attached with c.Error
	s.router.Use(middleware.ErrorHandler(s.logger))

	// OpenAPI specification endpoints
	s.router.GET("/api/openapi.yaml", handlers.GetOpenAPIYAML)
	s.router.GET("/api/openapi.json", handlers.GetOpenAPISpec)

	// Swagger UI via gin-swagger bound to the hand-written openapi.yaml
	// Visit /swagger/index.html
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/api/openapi.yaml")))

	// Prometheus metrics endpoint
	if s.config.Monitoring.Enabled {
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cache, s.service.Source(), s.logger)

	// Public health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// Root redirect to Swagger UI for convenience
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/index.html")
	})

	rolloutHandler := handlers.NewRolloutHandler(s.service, s.logger)
	ri := s.router.Group(RoutePrefix)
	ri.POST("/detect-anomalies", rolloutHandler.DetectAnomalies)
	ri.POST("/predict", rolloutHandler.Predict)
	ri.POST("/simulate", rolloutHandler.Simulate)
	ri.POST("/recommendations", rolloutHandler.Recommendations)
	ri.POST("/analyze", rolloutHandler.Analyze)
	ri.POST("/analyze/live", rolloutHandler.AnalyzeLive)
	ri.GET("/health", rolloutHandler.Health)
	ri.GET("/models", rolloutHandler.Models)

	// WebSocket stream of realtime analyses
	if s.config.WebSocket.Enabled {
		streamHandler := handlers.NewStreamHandler(s.service, s.streams, s.config.WebSocket, s.logger)
		ri.GET("/analyze/stream", streamHandler.Stream)
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MIRADOR-ROLLOUT REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down MIRADOR-ROLLOUT gracefully")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	// Hijacked stream connections are not tracked by http.Server.Shutdown.
	s.streams.CloseAll()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
