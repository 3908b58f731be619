// Package server assembles the gateway's HTTP surface.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/aggregate"
	"github.com/unkn0wn-root/quizgate/health"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
	"github.com/unkn0wn-root/quizgate/realtime"
	"github.com/unkn0wn-root/quizgate/upstream"
)

const defaultShutdownTimeout = 15 * time.Second

type Options struct {
	Addr      string
	ClientURL string // CORS origin; empty allows any

	Aggregate *aggregate.Handlers
	Router    *upstream.Router
	Hub       *realtime.Hub
	Cache     CacheAdmin // optional admin endpoints
	Reporter  *health.Reporter
	Metrics   *health.Metrics

	Logger          quizgate.Logger
	ShutdownTimeout time.Duration
}

type Server struct {
	srv     *http.Server
	handler http.Handler
	hub     *realtime.Hub
	log     quizgate.Logger
	grace   time.Duration
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = quizgate.NopLogger{}
	}
	s := &Server{
		hub:   opts.Hub,
		log:   log,
		grace: opts.ShutdownTimeout,
	}
	if s.grace <= 0 {
		s.grace = defaultShutdownTimeout
	}

	mux := http.NewServeMux()
	s.routes(mux, opts)

	s.handler = chain(mux,
		requestID,
		cors(opts.ClientURL),
		observe(log, opts.Metrics),
		recoverer(log),
	)
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, opts Options) {
	if opts.Aggregate != nil {
		opts.Aggregate.Register(mux)
	}
	if opts.Reporter != nil {
		mux.Handle("GET /api/health", opts.Reporter)
	}
	if opts.Metrics != nil {
		mux.Handle("GET /api/metrics", opts.Metrics)
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	if opts.Hub != nil {
		mux.HandleFunc("GET /socket", opts.Hub.ServeWS)
		mux.HandleFunc("POST /api/realtime/emit", opts.Hub.EmitHandler)
	}
	if opts.Cache != nil {
		registerCacheAdmin(mux, opts.Cache, s.log)
	}
	if opts.Router != nil {
		for _, r := range opts.Router.Table().Routes() {
			mux.Handle(r.Prefix, opts.Router)
			mux.Handle(r.Prefix+"/", opts.Router)
		}
	}
	mux.HandleFunc("/", notFound)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "Route "+r.URL.Path+" not found")
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(l) }()
	s.log.Info("gateway listening", quizgate.Fields{"addr": l.Addr().String()})

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("gateway shutting down", nil)
	sctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if s.hub != nil {
		// hijacked websocket connections are invisible to Shutdown
		s.hub.Close()
	}
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
