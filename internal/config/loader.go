package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout/detect"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (CONFIG_PATH, or config.yaml on the search path)
// 3. Default values
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_PATH"))
}

// LoadFrom is Load with an explicit configuration file. An empty path falls
// back to searching /etc/mirador-rollout, ./configs and the working directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mirador-rollout/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	setDefaults(v)

	// Read configuration file (optional unless explicitly given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		ConfigValidationErrors.Inc()
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	// Cache defaults (Valkey); no nodes means in-memory
	v.SetDefault("cache.nodes", []string{})
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Cache", "X-Request-ID", "X-Rate-Limit-Remaining"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests", DefaultRateLimit)
	v.SetDefault("rate_limit.window", DefaultRateLimitWindow)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.tracing_enabled", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4317")
	v.SetDefault("monitoring.sample_ratio", 1.0)

	v.SetDefault("grpc.health_port", 0)
	v.SetDefault("grpc.reflection", false)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.max_connections", DefaultWSMaxConnections)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", DefaultWSPingInterval)
	v.SetDefault("websocket.max_message_size", DefaultWSMessageSize)

	// Engine defaults mirror rollout.DefaultSettings
	p := detect.DefaultParams()
	v.SetDefault("engine.timeout", DefaultAnalysisTimeout)
	v.SetDefault("engine.result_cache_ttl", 0)
	v.SetDefault("engine.anomaly.algorithm", detect.AlgorithmTrendResidual)
	v.SetDefault("engine.anomaly.lookback_days", 7)
	v.SetDefault("engine.anomaly.min_points", 5)
	v.SetDefault("engine.anomaly.threshold", p.Threshold)
	v.SetDefault("engine.anomaly.sensitivity", p.Sensitivity)
	v.SetDefault("engine.anomaly.window", p.Window)
	v.SetDefault("engine.anomaly.scale_floor_ratio", p.ScaleFloorRatio)
	v.SetDefault("engine.anomaly.saliency_threshold", p.SaliencyThreshold)
	v.SetDefault("engine.predictor.min_training_days", 5)
	v.SetDefault("engine.predictor.quality_bar", 0.8)
	v.SetDefault("engine.predictor.learning_rate", 0.1)
	v.SetDefault("engine.predictor.iterations", 500)
	v.SetDefault("engine.predictor.l2", 0.01)
	v.SetDefault("engine.decision.default_error_rate_limit", 5.0)
	v.SetDefault("engine.decision.default_response_time_limit", 1000.0)
	v.SetDefault("engine.simulator.default_days", 30)
	v.SetDefault("engine.simulator.max_days", models.MaxSimulationDays)

	// Metrics source defaults
	v.SetDefault("metrics_source.type", SourceStatic)
	v.SetDefault("metrics_source.address", "http://localhost:9090")
	v.SetDefault("metrics_source.timeout", DefaultSourceTimeout)
	v.SetDefault("metrics_source.step", DefaultSourceStep)
	v.SetDefault("metrics_source.lookback", DefaultSourceLookback)
	v.SetDefault("metrics_source.queries", DefaultQueries())
	v.SetDefault("metrics_source.static", map[string]float64{})
	v.SetDefault("metrics_source.ca_file", "")
	v.SetDefault("metrics_source.insecure_skip_verify", false)
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	// Server configuration
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Valkey cache nodes
	if cacheNodes := os.Getenv("VALKEY_CACHE_NODES"); cacheNodes != "" {
		nodes := strings.Split(cacheNodes, ",")
		for i, node := range nodes {
			nodes[i] = strings.TrimSpace(node)
		}
		v.Set("cache.nodes", nodes)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	if promURL := os.Getenv("PROMETHEUS_URL"); promURL != "" {
		v.Set("metrics_source.address", promURL)
		v.Set("metrics_source.type", SourcePrometheus)
	}
	if caFile := os.Getenv("PROMETHEUS_CA_FILE"); caFile != "" {
		v.Set("metrics_source.ca_file", caFile)
	}

	if otlp := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otlp != "" {
		otlp = strings.TrimPrefix(strings.TrimPrefix(otlp, "http://"), "https://")
		v.Set("monitoring.otlp_endpoint", otlp)
		v.Set("monitoring.tracing_enabled", true)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	// Validate port range
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}
	for _, node := range config.Cache.Nodes {
		if err := ValidateValkeyNode(node); err != nil {
			return fmt.Errorf("invalid Valkey node %s: %w", node, err)
		}
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests < 1 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requires positive requests and window")
	}

	if config.GRPC.HealthPort < 0 || config.GRPC.HealthPort > 65535 {
		return fmt.Errorf("invalid gRPC health port: %d", config.GRPC.HealthPort)
	}
	if config.GRPC.HealthPort != 0 && config.GRPC.HealthPort == config.Port {
		return fmt.Errorf("gRPC health port must differ from HTTP port %d", config.Port)
	}

	if config.Monitoring.TracingEnabled {
		if err := ValidateGRPCEndpoint(config.Monitoring.OTLPEndpoint); err != nil {
			return fmt.Errorf("invalid OTLP endpoint: %w", err)
		}
		if config.Monitoring.SampleRatio < 0 || config.Monitoring.SampleRatio > 1 {
			return fmt.Errorf("trace sample ratio must be between 0 and 1")
		}
	}

	if err := validateEngine(config.Engine); err != nil {
		return err
	}
	return validateMetricsSource(config.MetricsSource)
}

func validateEngine(e EngineConfig) error {
	if e.Timeout <= 0 {
		return fmt.Errorf("engine timeout must be positive")
	}
	if e.ResultCacheTTL < 0 {
		return fmt.Errorf("engine result cache TTL cannot be negative")
	}
	if !contains(detect.Algorithms, e.Anomaly.Algorithm) {
		return fmt.Errorf("unknown anomaly algorithm: %s", e.Anomaly.Algorithm)
	}
	if e.Anomaly.Threshold <= 0 || e.Anomaly.Threshold >= 1 {
		return fmt.Errorf("anomaly threshold must be between 0 and 1 (exclusive)")
	}
	if e.Anomaly.Sensitivity < 0 || e.Anomaly.Sensitivity > 1 {
		return fmt.Errorf("anomaly sensitivity must be between 0 and 1")
	}
	if e.Anomaly.MinPoints < 3 {
		return fmt.Errorf("anomaly min_points must be at least 3")
	}
	if e.Predictor.QualityBar <= 0 || e.Predictor.QualityBar > 1 {
		return fmt.Errorf("predictor quality bar must be in (0, 1]")
	}
	if e.Decision.DefaultErrorRateLimit <= 0 || e.Decision.DefaultResponseTimeLimit <= 0 {
		return fmt.Errorf("default decision limits must be positive")
	}
	if e.Simulator.MaxDays < 1 || e.Simulator.MaxDays > models.MaxSimulationDays {
		return fmt.Errorf("simulator max_days must be between 1 and %d", models.MaxSimulationDays)
	}
	if e.Simulator.DefaultDays > e.Simulator.MaxDays {
		return fmt.Errorf("simulator default_days cannot exceed max_days")
	}
	return nil
}

func validateMetricsSource(m MetricsSourceConfig) error {
	switch m.Type {
	case SourceStatic:
		return nil
	case SourcePrometheus:
		if err := ValidateEndpoint(m.Address); err != nil {
			return fmt.Errorf("invalid Prometheus address: %w", err)
		}
		if len(m.Queries) == 0 {
			return fmt.Errorf("prometheus metrics source needs at least one query")
		}
		if m.Step <= 0 || m.Lookback <= 0 {
			return fmt.Errorf("prometheus step and lookback must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown metrics source type: %s", m.Type)
	}
}
