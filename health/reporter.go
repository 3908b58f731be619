// Package health reports upstream liveness, cache and realtime figures, and
// request metrics in both JSON and Prometheus form.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/cache"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
	"github.com/unkn0wn-root/quizgate/upstream"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"

	DefaultProbeTimeout = 5 * time.Second
)

// CacheStats is the read side of the two-tier cache.
type CacheStats interface {
	Stats(ctx context.Context) cache.Stats
}

type ServiceStatus struct {
	Status       string `json:"status"`
	URL          string `json:"url"`
	StatusCode   int    `json:"statusCode,omitempty"`
	ResponseTime int64  `json:"responseTimeMs"`
	Error        string `json:"error,omitempty"`
}

type Report struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    float64                  `json:"uptime"` // seconds
	Services  map[string]ServiceStatus `json:"services"`
	Cache     *cache.Stats             `json:"cache,omitempty"`
}

// Healthy is true when every probed service is healthy.
func (r Report) Healthy() bool { return r.Status == StatusHealthy }

type ReporterOptions struct {
	Targets    []upstream.Target
	HTTPClient *http.Client
	Timeout    time.Duration // per probe; 0 => 5s
	Cache      CacheStats    // optional
	Metrics    *Metrics      // optional; receives dependency status
	Logger     quizgate.Logger
	Started    time.Time        // zero => construction time
	Now        func() time.Time // nil => time.Now
}

// Reporter probes GET <base>/health on every target. Nothing is retried or
// cached: each report is live.
type Reporter struct {
	targets []upstream.Target
	hc      *http.Client
	timeout time.Duration
	cache   CacheStats
	metrics *Metrics
	log     quizgate.Logger
	started time.Time
	now     func() time.Time
}

func NewReporter(opts ReporterOptions) *Reporter {
	r := &Reporter{
		targets: opts.Targets,
		hc:      opts.HTTPClient,
		timeout: opts.Timeout,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		log:     opts.Logger,
		started: opts.Started,
		now:     opts.Now,
	}
	if r.hc == nil {
		r.hc = &http.Client{}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultProbeTimeout
	}
	if r.log == nil {
		r.log = quizgate.NopLogger{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.started.IsZero() {
		r.started = r.now()
	}
	return r
}

func (r *Reporter) Report(ctx context.Context) Report {
	results := make([]ServiceStatus, len(r.targets))
	var g errgroup.Group
	for i, t := range r.targets {
		g.Go(func() error {
			results[i] = r.probe(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	now := r.now()
	rep := Report{
		Status:    StatusHealthy,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(r.started).Seconds(),
		Services:  make(map[string]ServiceStatus, len(results)),
	}
	for i, t := range r.targets {
		s := results[i]
		rep.Services[t.Name] = s
		if s.Status != StatusHealthy {
			rep.Status = StatusDegraded
		}
		if r.metrics != nil {
			r.metrics.SetDependency(t.Name, s.Status == StatusHealthy)
		}
	}
	if r.cache != nil {
		st := r.cache.Stats(ctx)
		rep.Cache = &st
	}
	return rep
}

func (r *Reporter) probe(ctx context.Context, t upstream.Target) (s ServiceStatus) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s.URL = t.BaseURL
	start := time.Now()
	defer func() { s.ResponseTime = time.Since(start).Milliseconds() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL("/health"), nil)
	if err != nil {
		s.Status, s.Error = StatusUnhealthy, err.Error()
		return s
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		s.Status, s.Error = StatusUnhealthy, err.Error()
		r.log.Debug("health probe failed", quizgate.Fields{"service": t.Name, "err": err})
		return s
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	s.StatusCode = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		s.Status, s.Error = StatusUnhealthy, fmt.Sprintf("status %d", resp.StatusCode)
		return s
	}
	s.Status = StatusHealthy
	return s
}

// ServeHTTP answers 200 with the live report, whatever the outcome.
func (r *Reporter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, r.Report(req.Context()))
}
