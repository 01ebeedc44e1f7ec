package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// valkeySingleImpl implements ValkeyCluster against a single-node Valkey/Redis instance.
type valkeySingleImpl struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration, log logger.Logger) (ValkeyCluster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey single-node: %w", err)
	}

	return &valkeySingleImpl{client: client, logger: log, ttl: defaultTTL}, nil
}

func (v *valkeySingleImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, v.client, key)
}

func (v *valkeySingleImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = v.ttl
	}
	return set(ctx, v.client, key, value, ttl)
}

func (v *valkeySingleImpl) Delete(ctx context.Context, key string) error {
	return del(ctx, v.client, key)
}

func (v *valkeySingleImpl) CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	return v.Set(ctx, queryKey(queryHash), result, ttl)
}

func (v *valkeySingleImpl) GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error) {
	return v.Get(ctx, queryKey(queryHash))
}

func (v *valkeySingleImpl) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWindow(ctx, v.client, key, window)
}

// HealthCheck pings the Valkey single-node instance.
func (v *valkeySingleImpl) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

// The helpers below work for both *redis.Client and *redis.ClusterClient.

func get(ctx context.Context, c redis.Cmdable, key string) ([]byte, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		record("get", "miss")
		return nil, ErrCacheMiss
	}
	if err != nil {
		record("get", "error")
		return nil, fmt.Errorf("valkey get %s: %w", key, err)
	}
	record("get", "hit")
	return b, nil
}

func set(ctx context.Context, c redis.Cmdable, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(key, value)
	if err != nil {
		record("set", "error")
		return err
	}
	if err := c.Set(ctx, key, data, ttl).Err(); err != nil {
		record("set", "error")
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	record("set", "success")
	return nil
}

func del(ctx context.Context, c redis.Cmdable, key string) error {
	if err := c.Del(ctx, key).Err(); err != nil {
		record("delete", "error")
		return fmt.Errorf("valkey delete %s: %w", key, err)
	}
	record("delete", "success")
	return nil
}

func incrWindow(ctx context.Context, c redis.Cmdable, key string, window time.Duration) (int64, error) {
	n, err := c.Incr(ctx, key).Result()
	if err != nil {
		record("incr", "error")
		return 0, fmt.Errorf("valkey incr %s: %w", key, err)
	}
	if n == 1 {
		if err := c.Expire(ctx, key, window).Err(); err != nil {
			record("incr", "error")
			return 0, fmt.Errorf("valkey expire %s: %w", key, err)
		}
	}
	record("incr", "success")
	return n, nil
}
