package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/aggregate"
	"github.com/unkn0wn-root/quizgate/cache"
	"github.com/unkn0wn-root/quizgate/codec"
	"github.com/unkn0wn-root/quizgate/config"
	"github.com/unkn0wn-root/quizgate/health"
	asynchook "github.com/unkn0wn-root/quizgate/hooks/async"
	qlogrus "github.com/unkn0wn-root/quizgate/log/logrus"
	qslog "github.com/unkn0wn-root/quizgate/log/slog"
	qzap "github.com/unkn0wn-root/quizgate/log/zap"
	"github.com/unkn0wn-root/quizgate/provider"
	"github.com/unkn0wn-root/quizgate/provider/bigcache"
	"github.com/unkn0wn-root/quizgate/provider/fifo"
	"github.com/unkn0wn-root/quizgate/provider/redis"
	"github.com/unkn0wn-root/quizgate/provider/ristretto"
	"github.com/unkn0wn-root/quizgate/provider/ttlcache"
	"github.com/unkn0wn-root/quizgate/realtime"
	"github.com/unkn0wn-root/quizgate/server"
	"github.com/unkn0wn-root/quizgate/sloghooks"
	"github.com/unkn0wn-root/quizgate/upstream"
)

const (
	maxCachedDocument = 8 << 20
	localSweep        = time.Minute
)

// app is the wired gateway. close releases everything in reverse order.
type app struct {
	log     quizgate.Logger
	targets []upstream.Target
	server  *server.Server
	relay   *realtime.Relay
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(cfg *config.Config) (a *app, err error) {
	a = &app{targets: sortedTargets(cfg)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	log, syncLog, err := newLogger(cfg.LogDriver, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, syncLog)

	hooks := asynchook.New(sloghooks.New(qslog.New(cfg.LogLevel).L, sloghooks.Options{
		RemoteOpEvery:     10,
		FrameDroppedEvery: 100,
		BranchFailedEvery: 10,
	}), 1, 1024)
	a.closers = append(a.closers, hooks.Close)

	cd, err := codec.ByName(cfg.CacheCodec, maxCachedDocument)
	if err != nil {
		return nil, err
	}
	local, err := newLocal(cfg, hooks)
	if err != nil {
		return nil, err
	}

	var remote *redis.Redis
	if !cfg.RedisDisabled {
		remote, err = redis.Dial(redis.AddrConfig{
			Host:              cfg.RedisHost,
			Port:              cfg.RedisPort,
			Password:          cfg.RedisPassword,
			DB:                cfg.RedisDB,
			ReconnectInterval: cfg.RedisReconnect,
			Logger:            quizgate.With(log, quizgate.Fields{"component": "redis"}),
			Hooks:             hooks,
		})
		if err != nil {
			_ = local.Close(context.Background())
			return nil, err
		}
	}

	opts := cache.Options{
		Local:      local,
		Codec:      cd,
		Logger:     quizgate.With(log, quizgate.Fields{"component": "cache"}),
		Hooks:      hooks,
		DefaultTTL: cfg.CacheTTL,
	}
	if remote != nil {
		opts.Remote = remote
	}
	tiers, err := cache.New(opts)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = tiers.Close(context.Background()) })

	targets := cfg.Targets()
	table, err := upstream.DefaultTable(targets)
	if err != nil {
		return nil, err
	}
	client := upstream.NewClient(upstream.ClientOptions{
		Timeout: cfg.UpstreamTimeout,
		Logger:  quizgate.With(log, quizgate.Fields{"component": "upstream"}),
	})
	router := upstream.NewRouter(upstream.RouterOptions{
		Table:  table,
		Client: client,
		Policy: cfg.Policy(),
		Logger: quizgate.With(log, quizgate.Fields{"component": "router"}),
		Hooks:  hooks,
	})

	hub := realtime.NewHub(realtime.Options{
		Logger:    quizgate.With(log, quizgate.Fields{"component": "realtime"}),
		Hooks:     hooks,
		ClientURL: cfg.ClientURL,
	})
	if remote != nil {
		a.relay = realtime.NewRelay(remote.Client(), cfg.RealtimeChannel, hub, log)
	}

	metrics := health.NewMetrics(health.MetricsOptions{
		Cache:       tiers,
		Realtime:    hub,
		Logger:      log,
		SystemStats: true,
	})
	reporter := health.NewReporter(health.ReporterOptions{
		Targets: a.targets,
		Cache:   tiers,
		Metrics: metrics,
		Logger:  log,
	})
	handlers := aggregate.New(aggregate.Options{
		Fetcher: client,
		Cache:   tiers,
		Targets: aggregate.TargetsFrom(targets),
		Logger:  quizgate.With(log, quizgate.Fields{"component": "aggregate"}),
		Hooks:   hooks,
		TTL:     cfg.CacheTTL,
	})

	a.server = server.New(server.Options{
		Addr:      cfg.Addr(),
		ClientURL: cfg.ClientURL,
		Aggregate: handlers,
		Router:    router,
		Hub:       hub,
		Cache:     tiers,
		Reporter:  reporter,
		Metrics:   metrics,
		Logger:    log,
	})
	return a, nil
}

func newLogger(driver, level string) (quizgate.Logger, func(), error) {
	switch driver {
	case "", "zap":
		z, err := qzap.New(level)
		if err != nil {
			return nil, nil, err
		}
		return z, func() { _ = z.Sync() }, nil
	case "logrus":
		return qlogrus.New(level), func() {}, nil
	case "slog":
		return qslog.New(level), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown log driver %q", driver)
	}
}

func newLocal(cfg *config.Config, hooks quizgate.Hooks) (provider.Provider, error) {
	n := cfg.CacheMaxEntries
	if n <= 0 {
		n = quizgate.DefaultLocalMaxEntries
	}
	switch cfg.CacheLocal {
	case "", "fifo":
		return fifo.New(fifo.Config{MaxEntries: n, CleanupInterval: localSweep, OnEvict: hooks.LocalEvicted}), nil
	case "ttlcache":
		return ttlcache.New(ttlcache.Config{Capacity: uint64(n), OnEvict: hooks.LocalEvicted}), nil
	case "ristretto":
		return ristretto.New(ristretto.ForEntries(int64(n)))
	case "bigcache":
		return bigcache.New(bigcache.Config{LifeWindow: cfg.CacheTTL, CleanWindow: localSweep, MaxEntriesInWindow: n})
	default:
		return nil, fmt.Errorf("unknown local cache provider %q", cfg.CacheLocal)
	}
}

func sortedTargets(cfg *config.Config) []upstream.Target {
	m := cfg.Targets()
	out := make([]upstream.Target, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
