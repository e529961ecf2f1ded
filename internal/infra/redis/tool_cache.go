package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ToolCache caches generated study tool payloads in Redis and falls back to the loader on cache miss.
// Values are stored as: SET tools:{key} {payload} EX ttl
type ToolCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewToolCache(client *redis.Client, ttl time.Duration) *ToolCache {
	return &ToolCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ToolCache) Remember(ctx context.Context, key string, load func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	cacheKey := c.key(key)

	if value, err := c.client.Get(ctx, cacheKey).Bytes(); err == nil {
		return value, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		value, err := c.client.Get(ctx, cacheKey).Bytes()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, redis.Nil) {
			// Redis trouble should not block generation.
			value, err = load(ctx)
			return value, err
		}

		value, err = load(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, cacheKey, value, c.ttlWithJitter()).Err()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *ToolCache) key(key string) string {
	return "tools:" + key
}

func (c *ToolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
