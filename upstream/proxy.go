package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
)

const maxRequestBytes = 10 << 20

// forwarded request headers; everything else stays at the gateway.
var forwardHeaders = []string{"Content-Type", "Accept", "X-Auth-Token", "X-Request-ID"}

type RouterOptions struct {
	Table  *Table
	Client *Client
	Policy Policy          // zero => DefaultPolicy
	Logger quizgate.Logger // if nil, NopLogger is used
	Hooks  quizgate.Hooks  // if nil, NopHooks is used
}

// Router forwards /api/<resource> requests to the owning service with retries.
// It never caches.
type Router struct {
	table  *Table
	client *Client
	policy Policy
	log    quizgate.Logger
	hooks  quizgate.Hooks
}

func NewRouter(opts RouterOptions) *Router {
	r := &Router{
		table:  opts.Table,
		client: opts.Client,
		policy: opts.Policy.normalized(),
		log:    opts.Logger,
		hooks:  opts.Hooks,
	}
	if r.client == nil {
		r.client = NewClient(ClientOptions{Logger: opts.Logger})
	}
	if r.log == nil {
		r.log = quizgate.NopLogger{}
	}
	if r.hooks == nil {
		r.hooks = quizgate.NopHooks{}
	}
	return r
}

func (rt *Router) Table() *Table { return rt.table }

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := rt.table.Match(r.URL.Path)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Route "+r.URL.Path+" not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	req := Request{Method: r.Method, Path: r.URL.RequestURI(), Header: http.Header{}, Body: body}
	for _, h := range forwardHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	p := rt.policy
	svc := route.Target.Name
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		rt.log.Warn("upstream attempt failed, retrying", quizgate.Fields{
			"service": svc, "attempt": attempt, "wait": wait.String(), "err": err,
		})
		rt.hooks.UpstreamRetry(svc, attempt, wait, err)
	}

	start := time.Now()
	resp, attempts, err := Retry(r.Context(), p, func(ctx context.Context) (*Response, error) {
		return rt.client.Do(ctx, route.Target, req)
	})
	if err != nil {
		rt.fail(w, r, svc, attempts, err)
		return
	}

	rt.log.Debug("proxied", quizgate.Fields{
		"service": svc, "method": r.Method, "path": r.URL.Path,
		"status": resp.Status, "attempts": attempts, "took": time.Since(start).String(),
	})
	httpx.WriteRaw(w, resp.Status, resp.Header.Get("Content-Type"), resp.Body)
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, svc string, attempts int, err error) {
	var out error
	switch Classify(err) {
	case ClassTimeout:
		out = &quizgate.TimeoutError{Service: svc, Err: err}
	case ClassTransient:
		out = &quizgate.UnavailableError{Service: svc, Attempts: attempts, Err: err}
	default:
		if r.Context().Err() != nil {
			// client went away; nobody reads the answer
			return
		}
		out = &quizgate.UnavailableError{Service: svc, Attempts: attempts, Err: err}
	}
	rt.log.Error("upstream request failed", quizgate.Fields{
		"service": svc, "method": r.Method, "path": r.URL.Path, "attempts": attempts, "err": err,
	})
	httpx.Fail(w, out)
}
