package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GetCacheTTL returns the cache TTL as a duration
func (c *Config) GetCacheTTL() time.Duration {
	ttl := c.Cache.TTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return time.Duration(ttl) * time.Second
}

// ToJSON converts configuration to JSON string (for debugging)
func (c *Config) ToJSON() string {
	safeCopy := *c
	if safeCopy.Cache.Password != "" {
		safeCopy.Cache.Password = "[REDACTED]"
	}

	jsonBytes, _ := json.MarshalIndent(safeCopy, "", "  ")
	return string(jsonBytes)
}
