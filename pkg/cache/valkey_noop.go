package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// noopValkeyCache provides an in-memory, process-local fallback that satisfies
// ValkeyCluster when the external cache is unavailable. Data is not shared
// across replicas and is lost on restart.
type noopValkeyCache struct {
	m      map[string]entry
	mu     sync.Mutex
	logger logger.Logger
	now    func() time.Time
}

type entry struct {
	value   []byte
	counter int64
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

func NewNoopValkeyCache(log logger.Logger) ValkeyCluster {
	return newMemoryCache(log)
}

func newMemoryCache(log logger.Logger) *noopValkeyCache {
	log.Warn("Valkey cache not configured or unavailable; using in-memory cache")
	return &noopValkeyCache{m: make(map[string]entry), logger: log, now: time.Now}
}

// lookup returns a live entry, evicting it when expired. Callers hold n.mu.
func (n *noopValkeyCache) lookup(key string) (entry, bool) {
	e, ok := n.m[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(n.now()) {
		delete(n.m, key)
		return entry{}, false
	}
	return e, true
}

func (n *noopValkeyCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return n.now().Add(ttl)
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.lookup(key)
	if !ok {
		record("get", "miss")
		return nil, ErrCacheMiss
	}
	record("get", "hit")
	return e.value, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		record("set", "error")
		return err
	}
	n.mu.Lock()
	n.m[key] = entry{value: b, expires: n.expiry(ttl)}
	n.mu.Unlock()
	record("set", "success")
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	return n.Set(ctx, queryKey(queryHash), result, ttl)
}

func (n *noopValkeyCache) GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error) {
	return n.Get(ctx, queryKey(queryHash))
}

func (n *noopValkeyCache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.lookup(key)
	if !ok {
		e = entry{expires: n.expiry(window)}
	}
	e.counter++
	n.m[key] = e
	return e.counter, nil
}

func (n *noopValkeyCache) HealthCheck(ctx context.Context) error { return nil }
