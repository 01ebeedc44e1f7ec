package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

type valkeyClusterImpl struct {
	client *redis.ClusterClient
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeyCluster(nodes []string, password string, defaultTTL time.Duration, log logger.Logger) (ValkeyCluster, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection to Valkey cluster
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{client: client, logger: log, ttl: defaultTTL}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, v.client, key)
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = v.ttl
	}
	return set(ctx, v.client, key, value, ttl)
}

func (v *valkeyClusterImpl) Delete(ctx context.Context, key string) error {
	return del(ctx, v.client, key)
}

func (v *valkeyClusterImpl) CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	return v.Set(ctx, queryKey(queryHash), result, ttl)
}

func (v *valkeyClusterImpl) GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error) {
	return v.Get(ctx, queryKey(queryHash))
}

func (v *valkeyClusterImpl) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWindow(ctx, v.client, key, window)
}

// HealthCheck pings every shard master.
func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	return v.client.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
		return c.Ping(ctx).Err()
	})
}
