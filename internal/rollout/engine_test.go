package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_WiresEveryAnalyzer(t *testing.T) {
	e := newTestEngine(t)

	assert.NotNil(t, e.Anomaly)
	assert.NotNil(t, e.Predictor)
	assert.NotNil(t, e.Simulator)
	assert.NotNil(t, e.Realtime)
	assert.NotNil(t, e.Recommender)

	infos := e.Models()
	require.Len(t, infos, 6)
	names := make([]string, len(infos))
	for i, m := range infos {
		names[i] = m.Name
	}
	assert.Equal(t, []string{
		"anomaly-detector", "success-predictor", "step-decision",
		"rollout-simulator", "realtime-decision", "recommendation",
	}, names)
	assert.Equal(t, "365", infos[3].Parameters["maxDays"])
}
