package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ToolCache caches generated tool responses with TTL to avoid repeated AI calls.
type ToolCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedValue
}

type cachedValue struct {
	value     []byte
	expiresAt time.Time
}

func NewToolCache(ttl time.Duration) *ToolCache {
	return &ToolCache{
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedValue),
	}
}

// Remember returns the cached value for key or loads it once, even under concurrent callers.
func (c *ToolCache) Remember(ctx context.Context, key string, load func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := c.lookup(key); ok {
		return value, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if value, ok := c.lookup(key); ok {
			return value, nil
		}

		value, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedValue{
			value:     value,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *ToolCache) lookup(key string) ([]byte, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		return entry.value, true
	}
	return nil, false
}

func (c *ToolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
