package health

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/cache"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
	"github.com/unkn0wn-root/quizgate/realtime"
)

// RealtimeStats is the read side of the event hub.
type RealtimeStats interface {
	Stats() realtime.Stats
}

type MetricsOptions struct {
	Cache    CacheStats    // optional
	Realtime RealtimeStats // optional
	Logger   quizgate.Logger
	// SystemStats turns on host CPU and memory sampling via gopsutil.
	SystemStats bool
	Started     time.Time
	Now         func() time.Time
}

// Metrics counts requests for the JSON snapshot and mirrors them into a
// private Prometheus registry.
type Metrics struct {
	reg      *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	deps     *prometheus.GaugeVec

	total   atomic.Uint64
	errors  atomic.Uint64
	mu      sync.Mutex
	byRoute map[string]uint64

	cache   CacheStats
	rt      RealtimeStats
	log     quizgate.Logger
	system  bool
	started time.Time
	now     func() time.Time
}

func NewMetrics(opts MetricsOptions) *Metrics {
	m := &Metrics{
		reg:     prometheus.NewRegistry(),
		byRoute: make(map[string]uint64),
		cache:   opts.Cache,
		rt:      opts.Realtime,
		log:     opts.Logger,
		system:  opts.SystemStats,
		started: opts.Started,
		now:     opts.Now,
	}
	if m.log == nil {
		m.log = quizgate.NopLogger{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.started.IsZero() {
		m.started = m.now()
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(m.reg)
	m.requests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "quizgate_http_requests_total",
		Help: "Total number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	m.duration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quizgate_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.deps = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quizgate_dependency_up",
		Help: "Last probed status of upstream services (1=up, 0=down)",
	}, []string{"service"})

	if m.rt != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quizgate_realtime_connections",
			Help: "Open websocket connections",
		}, func() float64 { return float64(m.rt.Stats().Connections) })
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quizgate_realtime_rooms",
			Help: "Rooms with at least one member",
		}, func() float64 { return float64(m.rt.Stats().Rooms) })
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "quizgate_realtime_dropped_frames_total",
			Help: "Frames dropped on full send buffers",
		}, func() float64 { return float64(m.rt.Stats().Dropped) })
	}
	if m.cache != nil {
		stat := func(pick func(cache.Counters) int64) func() float64 {
			return func() float64 { return float64(pick(m.cache.Stats(context.Background()).Counters)) }
		}
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "quizgate_cache_hits_total",
			Help: "Cache reads served from either tier",
		}, stat(func(c cache.Counters) int64 { return c.Hits }))
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "quizgate_cache_misses_total",
			Help: "Cache reads that fell through both tiers",
		}, stat(func(c cache.Counters) int64 { return c.Misses }))
	}
	return m
}

// Observe records one finished request. route is the matched mux pattern.
func (m *Metrics) Observe(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.total.Add(1)
	if status >= http.StatusInternalServerError {
		m.errors.Add(1)
	}
	m.mu.Lock()
	m.byRoute[route]++
	m.mu.Unlock()

	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) SetDependency(service string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.deps.WithLabelValues(service).Set(v)
}

// Registry exposes the Prometheus registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

type RequestStats struct {
	Total   uint64            `json:"total"`
	Errors  uint64            `json:"errors"`
	ByRoute map[string]uint64 `json:"byRoute"`
}

type SystemStats struct {
	Goroutines     int     `json:"goroutines"`
	HeapAlloc      uint64  `json:"heapAlloc"`
	CPUPercent     float64 `json:"cpuPercent"`
	MemUsedPercent float64 `json:"memUsedPercent"`
}

type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
	Requests  RequestStats    `json:"requests"`
	Cache     *cache.Stats    `json:"cache,omitempty"`
	Realtime  *realtime.Stats `json:"realtime,omitempty"`
	System    SystemStats     `json:"system"`
}

func (m *Metrics) Snapshot(ctx context.Context) Snapshot {
	now := m.now()
	s := Snapshot{
		Timestamp: now.UTC(),
		Uptime:    now.Sub(m.started).Seconds(),
		Requests: RequestStats{
			Total:   m.total.Load(),
			Errors:  m.errors.Load(),
			ByRoute: m.routes(),
		},
		System: m.systemStats(ctx),
	}
	if m.cache != nil {
		st := m.cache.Stats(ctx)
		s.Cache = &st
	}
	if m.rt != nil {
		st := m.rt.Stats()
		s.Realtime = &st
	}
	return s
}

func (m *Metrics) routes() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.byRoute))
	for k, v := range m.byRoute {
		out[k] = v
	}
	return out
}

func (m *Metrics) systemStats(ctx context.Context) SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
	}
	if !m.system {
		return s
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		m.log.Debug("cpu sample failed", quizgate.Fields{"err": err})
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemUsedPercent = vm.UsedPercent
	} else {
		m.log.Debug("memory sample failed", quizgate.Fields{"err": err})
	}
	return s
}

// ServeHTTP answers with the JSON snapshot.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Snapshot(r.Context()))
}
