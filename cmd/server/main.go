package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/platformbuilds/mirador-rollout/internal/api"
	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/internal/tracing"
	"github.com/platformbuilds/mirador-rollout/internal/version"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.LoadSecrets(cfg); err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}

	// Initialize logger
	var fileOpts *logger.FileOptions
	if cfg.Logging.File != "" {
		fileOpts = &logger.FileOptions{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger := logger.NewWithFile(cfg.LogLevel, fileOpts)
	logger.Info("Starting MIRADOR-ROLLOUT", "version", version.Version, "commit", version.GitCommit, "environment", cfg.Environment)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	analysisTracer := tracing.NewAnalysisTracer(config.ServiceName)
	if cfg.Monitoring.TracingEnabled {
		tp, err := tracing.NewTracerProvider(ctx, config.ServiceName, version.Version, cfg.Monitoring.OTLPEndpoint, cfg.Monitoring.SampleRatio)
		if err != nil {
			logger.Warn("Tracing disabled: failed to initialize tracer provider", "endpoint", cfg.Monitoring.OTLPEndpoint, "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("Failed to flush traces", "error", err)
				}
			}()
			logger.Info("Tracing enabled", "endpoint", cfg.Monitoring.OTLPEndpoint, "sampleRatio", cfg.Monitoring.SampleRatio)
		}
	}

	// Valkey cache (in memory when no nodes are configured)
	valkeyCache := cache.New(cfg.Cache.Nodes, cfg.Cache.DB, cfg.Cache.Password, cfg.GetCacheTTL(), logger)
	logger.Info("Valkey cache initialized", "nodes", len(cfg.Cache.Nodes))

	// Metrics source for live analysis
	source, err := metricsource.New(cfg.MetricsSource, logger)
	if err != nil {
		logger.Fatal("Failed to initialize metrics source", "type", cfg.MetricsSource.Type, "error", err)
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info("Metrics source initialized", "type", source.Name())

	// Rollout intelligence service
	rolloutService, err := services.NewRolloutService(cfg.Engine.Settings(), services.RolloutServiceOptions{
		Timeout:        cfg.Engine.Timeout,
		ResultCacheTTL: cfg.Engine.ResultCacheTTL,
		Cache:          valkeyCache,
		Source:         source,
		Tracer:         analysisTracer,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize rollout service", "error", err)
	}

	// Hot reload of the engine section
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		watcher := config.NewConfigWatcher(path, cfg, logger)
		watcher.RegisterWatcher(func(newCfg *config.Config) {
			if err := rolloutService.ApplyEngineConfig(newCfg.Engine); err != nil {
				logger.Error("Keeping previous analyzer settings", "error", err)
			}
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Error("Configuration watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Optional gRPC health service
	if cfg.GRPC.HealthPort > 0 {
		grpcHealth, err := api.NewGRPCHealthServer(cfg.GRPC, logger)
		if err != nil {
			logger.Fatal("Failed to initialize gRPC health server", "error", err)
		}
		go func() {
			if err := grpcHealth.Start(); err != nil {
				logger.Error("gRPC health server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
			defer stop()
			grpcHealth.Shutdown(shutdownCtx)
		}()
		go func() {
			<-ctx.Done()
			grpcHealth.SetServing(false)
		}()
	}

	// Initialize API server
	apiServer := api.NewServer(cfg, logger, valkeyCache, rolloutService)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Start server
	if err := apiServer.Start(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		cancel()
		return
	}

	logger.Info("MIRADOR-ROLLOUT shutdown complete")
}
