package cache

import (
	"context"
	"time"

	"github.com/matzehuels/labelkit/pkg/observability"
)

// Instrumented reports hits, misses and writes of an inner cache to the
// registered observability cache hooks. keyType labels the events.
type Instrumented struct {
	Cache
	keyType string
}

// NewInstrumented wraps c.
func NewInstrumented(c Cache, keyType string) *Instrumented {
	return &Instrumented{Cache: c, keyType: keyType}
}

func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, c.keyType)
		} else {
			observability.Cache().OnCacheMiss(ctx, c.keyType)
		}
	}
	return data, hit, err
}

func (c *Instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := c.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, c.keyType, len(data))
	}
	return err
}
