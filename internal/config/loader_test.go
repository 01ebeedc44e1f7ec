package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/rollout"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoading(t *testing.T) {
	t.Run("load from file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
environment: test
port: 9999
log_level: debug

cache:
  nodes:
    - "test-valkey:6379"
  ttl: 30

engine:
  timeout: 2s
  anomaly:
    algorithm: spectral_residual
    lookback_days: 3
  decision:
    default_error_rate_limit: 2.5

metrics_source:
  type: prometheus
  address: http://prom:9090
  queries:
    error_rate: sum(rate(errors_total[5m]))
`)
		t.Setenv("CONFIG_PATH", path)

		config, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test", config.Environment)
		assert.Equal(t, 9999, config.Port)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Contains(t, config.Cache.Nodes, "test-valkey:6379")
		assert.Equal(t, 30, config.Cache.TTL)
		assert.Equal(t, 2*time.Second, config.Engine.Timeout)
		assert.Equal(t, "spectral_residual", config.Engine.Anomaly.Algorithm)
		assert.Equal(t, 3, config.Engine.Anomaly.LookbackDays)
		// untouched keys keep their defaults
		assert.Equal(t, 5, config.Engine.Anomaly.MinPoints)
		assert.Equal(t, 2.5, config.Engine.Decision.DefaultErrorRateLimit)
		assert.Equal(t, "sum(rate(errors_total[5m]))", config.MetricsSource.Queries["error_rate"])
	})

	t.Run("env var precedence", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("ROLLOUT_PORT", "7777")
		t.Setenv("ROLLOUT_LOG_LEVEL", "warn")
		t.Setenv("ROLLOUT_ENGINE_TIMEOUT", "750ms")

		config, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 7777, config.Port)
		assert.Equal(t, "warn", config.LogLevel)
		assert.Equal(t, 750*time.Millisecond, config.Engine.Timeout)
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, validateConfig(GetDefaultConfig()))

	cases := map[string]func(c *Config){
		"port":            func(c *Config) { c.Port = 0 },
		"log level":       func(c *Config) { c.LogLevel = "verbose" },
		"environment":     func(c *Config) { c.Environment = "qa" },
		"cache node":      func(c *Config) { c.Cache.Nodes = []string{"no-port"} },
		"engine timeout":  func(c *Config) { c.Engine.Timeout = 0 },
		"algorithm":       func(c *Config) { c.Engine.Anomaly.Algorithm = "isolation_forest" },
		"threshold":       func(c *Config) { c.Engine.Anomaly.Threshold = 1 },
		"source type":     func(c *Config) { c.MetricsSource.Type = "graphite" },
		"prom address":    func(c *Config) { c.MetricsSource.Type = SourcePrometheus; c.MetricsSource.Address = "prom:9090" },
		"grpc port clash": func(c *Config) { c.GRPC.HealthPort = c.Port },
		"otlp endpoint":   func(c *Config) { c.Monitoring.TracingEnabled = true; c.Monitoring.OTLPEndpoint = "collector" },
		"rate limit":      func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Requests = 0 },
		"max days":        func(c *Config) { c.Engine.Simulator.MaxDays = 5_000_000 },
		"default days":    func(c *Config) { c.Engine.Simulator.MaxDays = 7 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := GetDefaultConfig()
			mutate(c)
			assert.Error(t, validateConfig(c))
		})
	}
}

func TestEngineConfig_Settings(t *testing.T) {
	s := GetDefaultConfig().Engine.Settings()
	assert.Equal(t, rollout.DefaultSettings(), s)
	assert.Equal(t, 365, s.Simulator.MaxDays)
}

func TestSecretsLoading(t *testing.T) {
	config := GetDefaultConfig()

	t.Setenv("VALKEY_PASSWORD", "test-secret-123")
	require.NoError(t, LoadSecrets(config))
	assert.Equal(t, "test-secret-123", config.Cache.Password)
	assert.NotContains(t, config.ToJSON(), "test-secret-123")

	config.Environment = "production"
	config.Cache.Nodes = []string{"valkey:6379"}
	config.Cache.Password = ""
	t.Setenv("VALKEY_PASSWORD", "")

	err := LoadSecrets(config)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Valkey password is required for production")
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "engine:\n  timeout: 1s\n")
	initial, err := LoadFrom(path)
	require.NoError(t, err)

	w := NewConfigWatcher(path, initial, logger.NewNop())
	var notified atomic.Int32
	w.RegisterWatcher(func(c *Config) { notified.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "engine:\n  timeout: 3s\n")

	assert.Eventually(t, func() bool {
		return w.GetConfig().Engine.Timeout == 3*time.Second && notified.Load() > 0
	}, 5*time.Second, 20*time.Millisecond)

	w.Stop()
	w.Stop()
	require.NoError(t, <-done)
}

func BenchmarkConfigLoad(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := LoadFrom(""); err != nil {
			b.Fatal(err)
		}
	}
}
