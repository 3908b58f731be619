package fifo

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/gobwas/glob"

	pr "github.com/unkn0wn-root/quizgate/provider"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero: no expiry
}

// Provider is a bounded in-process store that evicts in insertion order:
// when full, the entry written longest ago goes first, regardless of reads.
// Overwriting a key counts as a fresh insertion.
// Expired entries are dropped lazily on Get and by the optional sweep loop.
type Provider struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = oldest insertion

	max     int
	onEvict func(key string)
	now     func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scanner  = (*Provider)(nil)
	_ pr.Sizer    = (*Provider)(nil)
)

type Config struct {
	MaxEntries      int           // <= 0 selects 1000
	CleanupInterval time.Duration // 0 disables the sweep loop
	OnEvict         func(key string)
	Now             func() time.Time
}

func New(cfg Config) *Provider {
	p := &Provider{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		max:     cfg.MaxEntries,
		onEvict: cfg.OnEvict,
		now:     cfg.Now,
	}
	if p.max <= 0 {
		p.max = 1000
	}
	if p.now == nil {
		p.now = time.Now
	}
	if cfg.CleanupInterval > 0 {
		p.ticker = time.NewTicker(cfg.CleanupInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.Cleanup()
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if p.expired(e) {
		p.remove(el)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := &entry{key: key, value: value}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}

	var evicted []string
	p.mu.Lock()
	if el, ok := p.items[key]; ok {
		p.remove(el)
	}
	for len(p.items) >= p.max {
		oldest := p.order.Front()
		if oldest == nil {
			break
		}
		evicted = append(evicted, oldest.Value.(*entry).key)
		p.remove(oldest)
	}
	p.items[key] = p.order.PushBack(e)
	p.mu.Unlock()

	if p.onEvict != nil {
		for _, k := range evicted {
			p.onEvict(k)
		}
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	if el, ok := p.items[key]; ok {
		p.remove(el)
	}
	p.mu.Unlock()
	return nil
}

// Keys returns live keys matching pattern in insertion order.
func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0)
	for el := p.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !p.expired(e) && g.Match(e.key) {
			out = append(out, e.key)
		}
	}
	return out, nil
}

func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Cleanup drops every expired entry.
func (p *Provider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for el := p.order.Front(); el != nil; {
		next := el.Next()
		if p.expired(el.Value.(*entry)) {
			p.remove(el)
		}
		el = next
	}
}

func (p *Provider) Close(_ context.Context) error {
	if p.stopCh != nil {
		close(p.stopCh)
		p.ticker.Stop() // stop ticker before waiting
		p.wg.Wait()
		p.stopCh = nil
	}
	return nil
}

func (p *Provider) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt)
}

// remove must be called with mu held.
func (p *Provider) remove(el *list.Element) {
	p.order.Remove(el)
	delete(p.items, el.Value.(*entry).key)
}
