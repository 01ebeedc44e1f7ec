package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/metrics"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// ErrCacheMiss is returned by Get when the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache: key not found")

// ValkeyCluster is the cache contract shared by the single-node, cluster and
// in-memory implementations.
type ValkeyCluster interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Analysis result caching keyed by request hash
	CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error
	GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error)

	// IncrWindow increments key and sets its expiry to window on first use.
	// It returns the count inside the current window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	HealthCheck(ctx context.Context) error
}

// New picks an implementation from the configured nodes: none gives the
// in-memory cache, one a single-node client, several a cluster client. An
// unreachable Valkey starts in memory and swaps in the real client once it
// answers.
func New(nodes []string, db int, password string, ttl time.Duration, log logger.Logger) ValkeyCluster {
	fallback := NewNoopValkeyCache(log)
	switch len(nodes) {
	case 0:
		return fallback
	case 1:
		c, err := NewValkeySingle(nodes[0], db, password, ttl, log)
		if err == nil {
			return c
		}
		log.Warn("Valkey single-node unreachable; starting in memory", "addr", nodes[0], "error", err)
		return NewAutoSwapForSingle(nodes[0], db, password, ttl, log, fallback)
	default:
		c, err := NewValkeyCluster(nodes, password, ttl, log)
		if err == nil {
			return c
		}
		log.Warn("Valkey cluster unreachable; starting in memory", "nodes", len(nodes), "error", err)
		return NewAutoSwapForCluster(nodes, password, ttl, log, fallback)
	}
}

func queryKey(hash string) string { return "rollout:result:" + hash }

// encode stores []byte and string as-is and everything else as JSON.
func encode(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return b, nil
	}
}

func record(operation, result string) {
	metrics.CacheRequestsTotal.WithLabelValues(operation, result).Inc()
}
