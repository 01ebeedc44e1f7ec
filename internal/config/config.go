package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	CORS          CORSConfig          `mapstructure:"cors" yaml:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring" yaml:"monitoring"`
	GRPC          GRPCConfig          `mapstructure:"grpc" yaml:"grpc"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket" yaml:"websocket"`
	Engine        EngineConfig        `mapstructure:"engine" yaml:"engine"`
	MetricsSource MetricsSourceConfig `mapstructure:"metrics_source" yaml:"metrics_source"`
}

// LoggingConfig enables an optional rotating log file next to stdout.
type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// CacheConfig handles the Valkey/Redis connection. An empty node list runs
// with the in-memory cache.
type CacheConfig struct {
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// RateLimitConfig limits requests per client IP over a fixed window.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Requests int           `mapstructure:"requests" yaml:"requests"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath    string  `mapstructure:"metrics_path" yaml:"metrics_path"`
	TracingEnabled bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// GRPCConfig controls the standalone gRPC health server. Port 0 disables it.
type GRPCConfig struct {
	HealthPort int  `mapstructure:"health_port" yaml:"health_port"`
	Reflection bool `mapstructure:"reflection" yaml:"reflection"`
}

type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConnections  int  `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
	MaxMessageSize  int  `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// EngineConfig tunes the analyzers. It is the only section applied on a hot
// reload.
type EngineConfig struct {
	Timeout        time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	ResultCacheTTL time.Duration   `mapstructure:"result_cache_ttl" yaml:"result_cache_ttl"`
	Anomaly        AnomalyConfig   `mapstructure:"anomaly" yaml:"anomaly"`
	Predictor      PredictorConfig `mapstructure:"predictor" yaml:"predictor"`
	Decision       DecisionConfig  `mapstructure:"decision" yaml:"decision"`
	Simulator      SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`
}

type AnomalyConfig struct {
	Algorithm         string  `mapstructure:"algorithm" yaml:"algorithm"`
	LookbackDays      int     `mapstructure:"lookback_days" yaml:"lookback_days"`
	MinPoints         int     `mapstructure:"min_points" yaml:"min_points"`
	Threshold         float64 `mapstructure:"threshold" yaml:"threshold"`
	Sensitivity       float64 `mapstructure:"sensitivity" yaml:"sensitivity"`
	Window            int     `mapstructure:"window" yaml:"window"`
	ScaleFloorRatio   float64 `mapstructure:"scale_floor_ratio" yaml:"scale_floor_ratio"`
	SaliencyThreshold float64 `mapstructure:"saliency_threshold" yaml:"saliency_threshold"`
}

type PredictorConfig struct {
	MinTrainingDays int     `mapstructure:"min_training_days" yaml:"min_training_days"`
	QualityBar      float64 `mapstructure:"quality_bar" yaml:"quality_bar"`
	LearningRate    float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Iterations      int     `mapstructure:"iterations" yaml:"iterations"`
	L2              float64 `mapstructure:"l2" yaml:"l2"`
}

type DecisionConfig struct {
	DefaultErrorRateLimit    float64 `mapstructure:"default_error_rate_limit" yaml:"default_error_rate_limit"`
	DefaultResponseTimeLimit float64 `mapstructure:"default_response_time_limit" yaml:"default_response_time_limit"`
}

type SimulatorConfig struct {
	DefaultDays int `mapstructure:"default_days" yaml:"default_days"`
	MaxDays     int `mapstructure:"max_days" yaml:"max_days"`
}

// MetricsSourceConfig selects where /analyze/live reads current metrics.
type MetricsSourceConfig struct {
	Type     string             `mapstructure:"type" yaml:"type"` // static | prometheus
	Address  string             `mapstructure:"address" yaml:"address"`
	Timeout  time.Duration      `mapstructure:"timeout" yaml:"timeout"`
	Step     time.Duration      `mapstructure:"step" yaml:"step"`
	Lookback time.Duration      `mapstructure:"lookback" yaml:"lookback"`
	Queries  map[string]string  `mapstructure:"queries" yaml:"queries"`
	// Static holds fixed values served by the static source, keyed by metric.
	Static   map[string]float64 `mapstructure:"static" yaml:"static"`

	// CAFile is a PEM bundle trusted for the Prometheus address, reloaded on change.
	CAFile             string `mapstructure:"ca_file" yaml:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}
