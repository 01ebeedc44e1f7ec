package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
	l.With("component", "test").Info("scoped")
}

func TestLogger_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollout.log")
	l := NewWithFile("info", &FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})

	l.Info("analysis finished", "analyzer", "anomaly")
	l.Debug("filtered out")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "analysis finished")
	assert.Contains(t, string(data), `"analyzer":"anomaly"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("nonsense").String())
	assert.Equal(t, "warn", parseLevel("warn").String())
}
