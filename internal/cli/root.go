// Package cli implements rolloutctl, which runs the rollout analyzers
// locally against request files.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "rolloutctl",
	Short: "Run rollout intelligence analyses from the command line",
	Long: `rolloutctl runs the same analyzers as the MIRADOR-ROLLOUT server
against request files in JSON or YAML and prints the result as JSON.

Analyzer settings come from --config, or from the built-in defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.GetDefaultConfig(), nil
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return config.LoadFrom(cfgFile)
}

// newService builds a RolloutService without result caching. The metrics
// source is wired so analyze --live reads the configured backend.
func newService() (*services.RolloutService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(logLevel)

	source, err := metricsource.New(cfg.MetricsSource, log)
	if err != nil {
		return nil, err
	}
	return services.NewRolloutService(cfg.Engine.Settings(), services.RolloutServiceOptions{
		Timeout: cfg.Engine.Timeout,
		Source:  source,
	}, log)
}
