package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout"
	"github.com/platformbuilds/mirador-rollout/internal/services"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Details   string          `json:"details"`
	Code      string          `json:"code"`
	Timestamp string          `json:"timestamp"`
}

type downSource struct{}

func (downSource) Name() string { return "prometheus" }
func (downSource) Recent(context.Context, models.FlagRef) ([]models.MetricDataPoint, error) {
	return nil, errors.New("dial tcp 10.0.0.1:9090: connection refused")
}
func (downSource) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, source metricsource.Source, cacheTTL time.Duration) *Server {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Environment = "test"
	log := logger.NewNop()
	cch := cache.NewNoopValkeyCache(log)
	svc, err := services.NewRolloutService(rollout.DefaultSettings(), services.RolloutServiceOptions{
		Cache:          cch,
		Source:         source,
		ResultCacheTTL: cacheTTL,
	}, log)
	require.NoError(t, err)
	return NewServer(cfg, log, cch, svc)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

const flag = `"projectKey":"shop","environment":"prod","featureFlagKey":"new-cart"`

const steps = `"steps":[
	{"stepNumber":1,"percentage":10,"duration":"1h"},
	{"stepNumber":2,"percentage":50,"duration":"2h"},
	{"stepNumber":3,"percentage":100,"duration":"4h"}]`

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"mirador-rollout"`)

	w, _ = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":{"status":"healthy"}`)

	w, env := do(t, s, http.MethodGet, RoutePrefix+"/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", env.Status)
	var data struct {
		Status           string   `json:"status"`
		Analyzers        []string `json:"analyzers"`
		AnomalyAlgorithm string   `json:"anomalyAlgorithm"`
		MetricsSource    string   `json:"metricsSource"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Len(t, data.Analyzers, 6)
	assert.Equal(t, "trend_residual", data.AnomalyAlgorithm)
	assert.Equal(t, "none", data.MetricsSource)
}

func TestServer_ReadyReportsDegradedSource(t *testing.T) {
	s := newTestServer(t, downSource{}, 0)
	w, _ := do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestServer_Models(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w, env := do(t, s, http.MethodGet, RoutePrefix+"/models", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Models      []rollout.ModelInfo `json:"models"`
		LiveActions []string            `json:"liveActions"`
		StepActions []string            `json:"stepActions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Models, 6)
	assert.Equal(t, []string{"continue", "pause", "accelerate", "rollback"}, data.LiveActions)
	assert.Equal(t, []string{"proceed", "pause", "accelerate", "rollback"}, data.StepActions)
}

func TestServer_Analyze(t *testing.T) {
	s := newTestServer(t, nil, 0)
	body := `{` + flag + `,
		"realtimeMetrics":[{"metricName":"error_rate","value":8,"timestamp":"2025-03-01T10:00:00Z"}],
		"activeConfiguration":{` + steps + `,"safetyLimits":{"error_rate":5}}}`

	w, env := do(t, s, http.MethodPost, RoutePrefix+"/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)
	assert.NotEmpty(t, env.Timestamp)
	assert.NotEmpty(t, w.Header().Get("X-Analysis-ID"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp models.RealtimeAnalysisResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.LiveRollback, resp.RecommendedAction)
	assert.Equal(t, models.Duration(0), resp.NextCheckIn)
}

func TestServer_InvalidRequests(t *testing.T) {
	s := newTestServer(t, nil, 0)
	tests := []struct {
		name, path, body, details string
	}{
		{"malformed json", "/predict", `{"projectKey":`, ""},
		{"missing flag", "/simulate", `{"configuration":{` + steps + `}}`, ""},
		{"empty steps", "/simulate", `{` + flag + `,"configuration":{"steps":[]}}`, models.ErrEmptySteps.Error()},
		{"simulation too long", "/simulate", `{` + flag + `,"configuration":{` + steps + `},"simulationDays":2000000000}`, "must not exceed 365"},
		{"non monotonic", "/predict", `{` + flag + `,"configuration":{"steps":[
			{"stepNumber":1,"percentage":50,"duration":"1h"},
			{"stepNumber":2,"percentage":10,"duration":"1h"}]}}`, "non-decreasing"},
		{"unknown goal", "/recommendations", `{` + flag + `,"optimizationGoal":"yolo"}`, models.ErrUnknownGoal.Error()},
		{"no realtime metrics", "/analyze", `{` + flag + `}`, models.ErrNoMetrics.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, s, http.MethodPost, RoutePrefix+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, "Invalid request format", env.Error)
			assert.NotEmpty(t, env.Details)
			if tt.details != "" {
				assert.Contains(t, env.Details, tt.details)
			}
		})
	}
}

func TestServer_SimulateAndCache(t *testing.T) {
	s := newTestServer(t, nil, time.Minute)
	body := `{` + flag + `,"configuration":{` + steps + `}}`

	w, env := do(t, s, http.MethodPost, RoutePrefix+"/simulate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var first models.RolloutSimulationResponse
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Len(t, first.Steps, 3)

	w, env = do(t, s, http.MethodPost, RoutePrefix+"/simulate", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	var second models.RolloutSimulationResponse
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, len(first.Steps), len(second.Steps))
}

func TestServer_DetectPredictRecommend(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w, env := do(t, s, http.MethodPost, RoutePrefix+"/detect-anomalies", `{`+flag+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var anomalies models.AnomalyDetectionResponse
	require.NoError(t, json.Unmarshal(env.Data, &anomalies))
	assert.False(t, anomalies.HasAnomalies)

	w, env = do(t, s, http.MethodPost, RoutePrefix+"/predict", `{`+flag+`,"configuration":{`+steps+`,"strategy":"conservative"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var prediction models.RolloutPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &prediction))
	assert.Equal(t, models.ModelHeuristic, prediction.Model)
	assert.InDelta(t, 0.85, prediction.SuccessProbability, 1e-9)

	w, env = do(t, s, http.MethodPost, RoutePrefix+"/recommendations", `{`+flag+`,"currentConfiguration":{`+steps+`},"optimizationGoal":"balanced"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var recs models.RolloutRecommendations
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	assert.Len(t, recs.RecommendedConfiguration.Steps, 3)
}

func TestServer_AnalyzeLive(t *testing.T) {
	src := metricsource.NewStaticSource(map[string]float64{"error_rate": 0.05, "response_time": 80})
	s := newTestServer(t, src, 0)

	w, env := do(t, s, http.MethodPost, RoutePrefix+"/analyze/live", `{`+flag+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.RealtimeAnalysisResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.LiveAccelerate, resp.RecommendedAction)

	down := newTestServer(t, downSource{}, 0)
	w, env = do(t, down, http.MethodPost, RoutePrefix+"/analyze/live", `{`+flag+`}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "SOURCE_UNAVAILABLE", env.Code)
	assert.Contains(t, env.Error, "connection refused")
}

func TestServer_AnalyzeStream(t *testing.T) {
	s := newTestServer(t, nil, 0)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + RoutePrefix + "/analyze/stream"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := []string{
		`{` + flag + `,"realtimeMetrics":[{"metricName":"error_rate","value":1}],"activeConfiguration":{"safetyLimits":{"error_rate":5}}}`,
		`not json`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(f)))
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply struct {
		Type string `json:"type"`
		Data struct {
			AnalysisID string                          `json:"analysisId"`
			Result     models.RealtimeAnalysisResponse `json:"result"`
		} `json:"data"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "analysis", reply.Type)
	assert.NotEmpty(t, reply.Data.AnalysisID)
	assert.Equal(t, models.LiveContinue, reply.Data.Result.RecommendedAction)

	reply.Type, reply.Error = "", ""
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Invalid request format", reply.Error)
}

func TestServer_StreamRequiresUpgrade(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w, env := do(t, s, http.MethodGet, RoutePrefix+"/analyze/stream", "")
	assert.Equal(t, http.StatusUpgradeRequired, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestServer_OpenAPI(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("/api/v1/rollout-intelligence/analyze/live")))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "dev", doc["info"].(map[string]any)["version"])
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, 0)
	do(t, s, http.MethodGet, "/health", "")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rollout_http_requests_total")
	assert.Contains(t, w.Body.String(), "rollout_build_info")
}
