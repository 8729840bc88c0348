package tenant

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// negative is cached for keys the inner directory did not know.
type negative struct{}

// Cached fronts a Directory with an in-process lookup cache. Entries are
// keyed by key fingerprint. Unavailable results are never cached; misses
// live for a tenth of the hit TTL so a newly issued key works quickly.
type Cached struct {
	inner  Directory
	cache  *gocache.Cache
	hitTTL time.Duration
	negTTL time.Duration
}

var (
	_ Directory = (*Cached)(nil)
	_ Pinger    = (*Cached)(nil)
)

// NewCached wraps inner. ttl must be positive.
func NewCached(inner Directory, ttl time.Duration) *Cached {
	neg := ttl / 10
	if neg < time.Second {
		neg = time.Second
	}
	if neg > ttl {
		neg = ttl
	}
	return &Cached{
		inner:  inner,
		cache:  gocache.New(ttl, 2*ttl),
		hitTTL: ttl,
		negTTL: neg,
	}
}

func (c *Cached) Resolve(ctx context.Context, apiKey string) (*Identity, error) {
	fp := keys.Fingerprint(apiKey)
	if v, ok := c.cache.Get(fp); ok {
		switch e := v.(type) {
		case Identity:
			return &e, nil
		case negative:
			return nil, nil
		}
	}

	id, err := c.inner.Resolve(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if id == nil {
		c.cache.Set(fp, negative{}, c.negTTL)
		return nil, nil
	}
	c.cache.Set(fp, *id, c.hitTTL)
	return id, nil
}

func (c *Cached) ListAll(ctx context.Context) ([]Summary, error) {
	return c.inner.ListAll(ctx)
}

// Ping delegates to the inner directory when it has a store to probe.
func (c *Cached) Ping(ctx context.Context) error {
	if p, ok := c.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Flush drops every cached entry, e.g. after a key is revoked.
func (c *Cached) Flush() {
	c.cache.Flush()
}
