package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ValidateEndpoint accepts an absolute http(s) URL such as a Prometheus address.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

// ValidateGRPCEndpoint accepts host:port, as used for the OTLP collector.
func ValidateGRPCEndpoint(endpoint string) error {
	return validateHostPort("gRPC endpoint", endpoint)
}

// ValidateValkeyNode accepts one host:port entry of cache.nodes.
func ValidateValkeyNode(node string) error {
	return validateHostPort("Valkey node", node)
}

func validateHostPort(what, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s must be host:port: %w", what, err)
	}
	if host == "" {
		return fmt.Errorf("%s %q has no host", what, addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s %q: port must be between 1 and 65535", what, addr)
	}
	return nil
}
