// Package aggregate serves the composite read endpoints. Each endpoint checks
// the cache, fans out to the owning services, tolerates failures of every
// branch except its primary resource, and writes the merged document through.
package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
	"github.com/unkn0wn-root/quizgate/internal/util"
	"github.com/unkn0wn-root/quizgate/upstream"
)

// Fetcher performs one JSON GET against a service.
type Fetcher interface {
	GetJSON(ctx context.Context, t upstream.Target, path string, dst any) error
}

// Cache is the read-through store for composed documents.
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Targets names the services the composite endpoints read from.
type Targets struct {
	Quizzing  upstream.Target
	Users     upstream.Target
	Comments  upstream.Target
	Scores    upstream.Target
	Courses   upstream.Target
	Posts     upstream.Target
	Feedbacks upstream.Target
}

// TargetsFrom picks the aggregation services out of a name-keyed set.
func TargetsFrom(m map[string]upstream.Target) Targets {
	return Targets{
		Quizzing:  m[upstream.Quizzing],
		Users:     m[upstream.Users],
		Comments:  m[upstream.Comments],
		Scores:    m[upstream.Scores],
		Courses:   m[upstream.Courses],
		Posts:     m[upstream.Posts],
		Feedbacks: m[upstream.Feedbacks],
	}
}

type Options struct {
	Fetcher Fetcher
	Cache   Cache
	Targets Targets
	Logger  quizgate.Logger  // if nil, NopLogger is used
	Hooks   quizgate.Hooks   // if nil, NopHooks is used
	TTL     time.Duration    // 0 => 300s
	Now     func() time.Time // nil => time.Now
}

type Handlers struct {
	fetch Fetcher
	cache Cache
	t     Targets
	log   quizgate.Logger
	hooks quizgate.Hooks
	ttl   time.Duration
	now   func() time.Time
}

func New(opts Options) *Handlers {
	h := &Handlers{
		fetch: opts.Fetcher,
		cache: opts.Cache,
		t:     opts.Targets,
		log:   opts.Logger,
		hooks: opts.Hooks,
		ttl:   util.Coalesce(opts.TTL, quizgate.DefaultCacheTTL),
		now:   opts.Now,
	}
	if h.log == nil {
		h.log = quizgate.NopLogger{}
	}
	if h.hooks == nil {
		h.hooks = quizgate.NopHooks{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/aggregated/quiz/{id}", h.QuizDetail)
	mux.HandleFunc("GET /api/aggregated/quizzes", h.QuizList)
	mux.HandleFunc("GET /api/aggregated/dashboard", h.Dashboard)
	mux.HandleFunc("GET /api/aggregated/user/{id}", h.UserProfile)
	mux.HandleFunc("GET /api/aggregated/category/{id}", h.CategoryDetail)
	mux.HandleFunc("GET /api/aggregated/search", h.Search)
}

// serve answers from cache or builds, caches and writes the document.
// Builds run on a context detached from the client so a disconnect does not
// abort upstream calls; each call keeps its own timeout.
func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, name, key string, build func(context.Context) (any, error)) {
	if raw, ok := h.cache.Get(r.Context(), key); ok {
		w.Header().Set("X-Cache", "HIT")
		httpx.WriteRaw(w, http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	doc, err := build(ctx)
	if err != nil {
		f := quizgate.Fields{"handler": name, "key": key, "err": err}
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.log.Error("aggregation failed", f)
		} else {
			h.log.Info("aggregation rejected", f)
		}
		httpx.Fail(w, err)
		return
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		h.log.Error("aggregation encode failed", quizgate.Fields{"handler": name, "err": err})
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.cache.Set(ctx, key, json.RawMessage(raw), h.ttl); err != nil {
		h.log.Warn("aggregation not cached", quizgate.Fields{"handler": name, "key": key, "err": err})
	}
	w.Header().Set("X-Cache", "MISS")
	httpx.WriteRaw(w, http.StatusOK, "application/json; charset=utf-8", raw)
}

// secondary returns the branch value or its zero value after recording the failure.
func secondary[T any](h *Handlers, handler, branch string, o *Outcome[T]) T {
	if o.OK() {
		return o.Value
	}
	h.log.Warn("secondary fetch failed", quizgate.Fields{"handler": handler, "branch": branch, "err": o.Err})
	h.hooks.BranchFailed(handler, branch, o.Err)
	var zero T
	return zero
}

func get[T any](ctx context.Context, h *Handlers, t upstream.Target, path string) (T, error) {
	var v T
	err := h.fetch.GetJSON(ctx, t, path, &v)
	return v, err
}
