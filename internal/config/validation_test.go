package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, ValidateEndpoint("http://prometheus:9090"))
	assert.NoError(t, ValidateEndpoint("https://prom.example.com"))

	for _, bad := range []string{"", "prometheus:9090", "ftp://prom:21", "http://"} {
		assert.Error(t, ValidateEndpoint(bad), bad)
	}
}

func TestValidateHostPort(t *testing.T) {
	assert.NoError(t, ValidateGRPCEndpoint("otel-collector:4317"))
	assert.NoError(t, ValidateValkeyNode("10.0.0.5:6379"))

	for _, bad := range []string{"", "valkey", ":6379", "valkey:abc", "valkey:0", "valkey:70000"} {
		assert.Error(t, ValidateValkeyNode(bad), bad)
	}
	assert.ErrorContains(t, ValidateGRPCEndpoint("collector"), "gRPC endpoint")
}
