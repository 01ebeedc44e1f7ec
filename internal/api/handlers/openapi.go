package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-rollout/internal/version"
)

// resolveOpenAPIPath returns a readable path to openapi.yaml by checking common
// locations when tests change the working directory. It honors
// ROLLOUT_OPENAPI_PATH if set, then tries relative fallbacks.
func resolveOpenAPIPath() string {
	if p := os.Getenv("ROLLOUT_OPENAPI_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	candidates := []string{
		"api/openapi.yaml",                              // repo root
		filepath.FromSlash("../../api/openapi.yaml"),    // from internal/api
		filepath.FromSlash("../../../api/openapi.yaml"), // from internal/api/handlers
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "api/openapi.yaml"
}

// GetOpenAPIYAML serves the document as written.
func GetOpenAPIYAML(c *gin.Context) {
	data, err := os.ReadFile(resolveOpenAPIPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "failed to load openapi.yaml"})
		return
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", data)
}

// GetOpenAPISpec serves the document as JSON with info.version set to the
// running build.
func GetOpenAPISpec(c *gin.Context) {
	data, err := os.ReadFile(resolveOpenAPIPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "failed to load openapi.yaml"})
		return
	}
	var obj map[string]any
	if err := yaml.Unmarshal(data, &obj); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "failed to parse openapi.yaml"})
		return
	}

	if info, ok := obj["info"].(map[string]any); ok {
		info["version"] = version.Version
	}

	c.JSON(http.StatusOK, obj)
}
