package ttlcache

import (
	"context"
	"time"

	"github.com/gobwas/glob"
	tc "github.com/jellydator/ttlcache/v3"

	pr "github.com/unkn0wn-root/quizgate/provider"
)

// Provider is a local tier on jellydator/ttlcache: per-entry TTL, capacity
// bound with least-recently-used eviction, background expiry.
type Provider struct {
	c *tc.Cache[string, []byte]
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scanner  = (*Provider)(nil)
	_ pr.Sizer    = (*Provider)(nil)
)

type Config struct {
	Capacity uint64 // 0 = unbounded
	OnEvict  func(key string)
}

func New(cfg Config) *Provider {
	opts := []tc.Option[string, []byte]{
		tc.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, tc.WithCapacity[string, []byte](cfg.Capacity))
	}
	c := tc.New(opts...)
	if cfg.OnEvict != nil {
		c.OnEviction(func(_ context.Context, reason tc.EvictionReason, it *tc.Item[string, []byte]) {
			if reason == tc.EvictionReasonCapacityReached {
				cfg.OnEvict(it.Key())
			}
		})
	}
	go c.Start()
	return &Provider{c: c}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	it := p.c.Get(key)
	if it == nil || it.IsExpired() {
		return nil, false, nil
	}
	return it.Value(), true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = tc.NoTTL
	}
	p.c.Set(key, value, ttl)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0)
	for _, k := range p.c.Keys() {
		if g.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Provider) Len() int { return p.c.Len() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Stop()
	return nil
}
