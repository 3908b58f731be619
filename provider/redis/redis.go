package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/quizgate"
	pr "github.com/unkn0wn-root/quizgate/provider"
)

var (
	ErrNilClient    = errors.New("redis provider: nil client")
	ErrDisconnected = errors.New("redis provider: not connected")
)

const (
	defaultReconnect = 5 * time.Second
	pingTimeout      = 2 * time.Second
	scanCount        = 500
	delChunk         = 500
)

// Redis is the remote cache tier. It connects lazily: the first ping runs in
// the background after New returns, and until it succeeds every operation
// fails fast with ErrDisconnected so callers fall back to the local tier.
// Transport errors mark the tier disconnected; a monitor goroutine pings it
// every ReconnectInterval until it answers again.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool

	connected atomic.Bool
	interval  time.Duration
	log       quizgate.Logger
	hooks     quizgate.Hooks

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ pr.Provider     = (*Redis)(nil)
	_ pr.Scanner      = (*Redis)(nil)
	_ pr.BulkDeleter  = (*Redis)(nil)
	_ pr.Connectivity = (*Redis)(nil)
)

type Config struct {
	Client            goredis.UniversalClient
	CloseClient       bool // set true only if this provider exclusively owns the client
	ReconnectInterval time.Duration
	Logger            quizgate.Logger
	Hooks             quizgate.Hooks
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	p := newRedis(cfg)
	p.rdb = cfg.Client
	p.start()
	return p, nil
}

// AddrConfig describes a standalone server the provider dials itself.
type AddrConfig struct {
	Host              string
	Port              int
	Password          string
	DB                int
	ReconnectInterval time.Duration
	Logger            quizgate.Logger
	Hooks             quizgate.Hooks
}

// Dial builds a client for cfg that is owned (and closed) by the provider.
// Fresh connections flip the tier back to connected.
func Dial(cfg AddrConfig) (*Redis, error) {
	if cfg.Host == "" {
		return nil, errors.New("redis provider: empty host")
	}
	p := newRedis(Config{
		CloseClient:       true,
		ReconnectInterval: cfg.ReconnectInterval,
		Logger:            cfg.Logger,
		Hooks:             cfg.Hooks,
	})
	p.rdb = goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		OnConnect: func(context.Context, *goredis.Conn) error {
			p.markUp()
			return nil
		},
	})
	p.start()
	return p, nil
}

func newRedis(cfg Config) *Redis {
	p := &Redis{
		closeClient: cfg.CloseClient,
		interval:    cfg.ReconnectInterval,
		log:         cfg.Logger,
		hooks:       cfg.Hooks,
		stop:        make(chan struct{}),
	}
	if p.interval <= 0 {
		p.interval = defaultReconnect
	}
	if p.log == nil {
		p.log = quizgate.NopLogger{}
	}
	if p.hooks == nil {
		p.hooks = quizgate.NopHooks{}
	}
	return p
}

// Client exposes the underlying client (pub/sub relay shares it).
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

// Connected reports whether the last observed interaction succeeded.
func (p *Redis) Connected() bool { return p.connected.Load() }

func (p *Redis) start() {
	p.wg.Add(1)
	go p.monitor()
}

func (p *Redis) monitor() {
	defer p.wg.Done()
	p.ping()

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			if !p.Connected() {
				p.ping()
			}
		}
	}
}

func (p *Redis) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		p.markDown(err)
		return
	}
	p.markUp()
}

func (p *Redis) markUp() {
	if p.connected.CompareAndSwap(false, true) {
		p.log.Info("remote cache connected", nil)
		p.hooks.RemoteRestored()
	}
}

func (p *Redis) markDown(err error) {
	if p.connected.CompareAndSwap(true, false) {
		p.log.Warn("remote cache disconnected", quizgate.Fields{"err": err})
		p.hooks.RemoteDown(err)
	}
}

// observe classifies err: server replies (WRONGTYPE, ...) and the caller's
// own cancellation or deadline keep the tier up, anything else is treated
// as a transport failure.
func (p *Redis) observe(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, goredis.Nil) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return err
	}
	p.markDown(err)
	return err
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !p.Connected() {
		return nil, false, ErrDisconnected
	}
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, p.observe(ctx, err)
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if !p.Connected() {
		return false, ErrDisconnected
	}
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, p.observe(ctx, err)
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	if !p.Connected() {
		return ErrDisconnected
	}
	return p.observe(ctx, p.rdb.Del(ctx, key).Err())
}

// Keys walks the keyspace with SCAN. On a cluster client only the node the
// command lands on is scanned.
func (p *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	if !p.Connected() {
		return nil, ErrDisconnected
	}
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return out, p.observe(ctx, err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (p *Redis) DelMany(ctx context.Context, keys []string) (int, error) {
	if !p.Connected() {
		return 0, ErrDisconnected
	}
	total := 0
	for start := 0; start < len(keys); start += delChunk {
		end := min(start+delChunk, len(keys))
		n, err := p.rdb.Del(ctx, keys[start:end]...).Result()
		total += int(n)
		if err != nil {
			return total, p.observe(ctx, err)
		}
	}
	return total, nil
}

// Close stops the monitor and releases the underlying redis client only when
// this provider owns it. Safe to call multiple times.
func (p *Redis) Close(context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		p.connected.Store(false)
		if p.closeClient {
			if cerr := p.rdb.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
				err = cerr
			}
		}
	})
	return err
}
