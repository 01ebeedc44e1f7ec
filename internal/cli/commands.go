package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/internal/version"
)

var (
	requestFile string
	live        bool
)

// result is what every analysis command prints.
type result struct {
	AnalysisID string `json:"analysisId"`
	Degraded   bool   `json:"degraded,omitempty"`
	Data       any    `json:"data"`
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, predictCmd, simulateCmd, recommendCmd, analyzeCmd} {
		cmd.Flags().StringVarP(&requestFile, "file", "f", "", "request file in JSON or YAML, - for stdin")
		_ = cmd.MarkFlagRequired("file")
	}
	analyzeCmd.Flags().BoolVar(&live, "live", false, "read current metrics from the configured metrics source")
}

// runAnalysis reads a request of type T, runs it through call and prints
// the response.
func runAnalysis[T any, PT interface {
	*T
	validatable
}](cmd *cobra.Command, call func(context.Context, *services.RolloutService, T) (any, services.AnalysisMeta, error)) error {
	var req T
	if err := readRequest(requestFile, PT(&req)); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	data, meta, err := call(cmd.Context(), svc, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result{AnalysisID: meta.ID, Degraded: meta.Degraded, Data: data})
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect anomalies in a metric history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.AnomalyDetectionRequest) (any, services.AnalysisMeta, error) {
			resp, meta := svc.DetectAnomalies(ctx, req)
			return resp, meta, nil
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the success probability of a rollout configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.RolloutPredictionRequest) (any, services.AnalysisMeta, error) {
			resp, meta := svc.PredictSuccess(ctx, req)
			return resp, meta, nil
		})
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a rollout step by step",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.RolloutSimulationRequest) (any, services.AnalysisMeta, error) {
			resp, meta := svc.Simulate(ctx, req)
			return resp, meta, nil
		})
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend an optimized rollout configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.RolloutRecommendationRequest) (any, services.AnalysisMeta, error) {
			resp, meta := svc.Recommend(ctx, req)
			return resp, meta, nil
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Decide continue, pause, accelerate or rollback",
	Long: `analyze decides the next rollout action from the realtime metrics in
the request file. With --live the metrics are read from the configured
metrics source and the file only needs the flag and active configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if live {
			return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.LiveAnalysisRequest) (any, services.AnalysisMeta, error) {
				resp, meta, err := svc.AnalyzeLive(ctx, req)
				return resp, meta, err
			})
		}
		return runAnalysis(cmd, func(ctx context.Context, svc *services.RolloutService, req models.RealtimeAnalysisRequest) (any, services.AnalysisMeta, error) {
			resp, meta := svc.AnalyzeRealtime(ctx, req)
			return resp, meta, nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show rolloutctl version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "rolloutctl %s (%s) built %s %s %s\n",
			info.Version, info.GitCommit, info.BuildTime, info.GoVersion, info.Platform)
		return nil
	},
}
