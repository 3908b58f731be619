package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/aggregate"
	"github.com/unkn0wn-root/quizgate/cache"
	"github.com/unkn0wn-root/quizgate/health"
	"github.com/unkn0wn-root/quizgate/provider/fifo"
	"github.com/unkn0wn-root/quizgate/realtime"
	"github.com/unkn0wn-root/quizgate/upstream"
)

type stack struct {
	srv     *Server
	cache   *cache.TwoTier
	metrics *health.Metrics
}

func newStack(t *testing.T) *stack {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/users/42":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"method": r.Method,
				"query":  r.URL.RawQuery,
				"rid":    r.Header.Get("X-Request-ID"),
			})
		default:
			_, _ = w.Write([]byte(`[{"_id":"1"}]`))
		}
	}))
	t.Cleanup(backend.Close)

	targets := map[string]upstream.Target{}
	for _, r := range upstream.Resources {
		targets[r.Service] = upstream.Target{Name: r.Service, BaseURL: backend.URL}
	}
	table, err := upstream.DefaultTable(targets)
	require.NoError(t, err)

	c, err := cache.New(cache.Options{Local: fifo.New(fifo.Config{})})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	client := upstream.NewClient(upstream.ClientOptions{Timeout: time.Second})
	hub := realtime.NewHub(realtime.Options{})
	metrics := health.NewMetrics(health.MetricsOptions{Cache: c, Realtime: hub})

	srv := New(Options{
		ClientURL: "http://app.local",
		Aggregate: aggregate.New(aggregate.Options{Fetcher: client, Cache: c, Targets: aggregate.TargetsFrom(targets)}),
		Router: upstream.NewRouter(upstream.RouterOptions{
			Table:  table,
			Client: client,
			Policy: upstream.Policy{Backoff: upstream.Linear(time.Millisecond)},
		}),
		Hub:      hub,
		Cache:    c,
		Reporter: health.NewReporter(health.ReporterOptions{Targets: table.Targets(), Cache: c}),
		Metrics:  metrics,
	})
	return &stack{srv: srv, cache: c, metrics: metrics}
}

func (s *stack) do(t *testing.T, method, target string, hdr http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if b := rec.Body.Bytes(); len(b) > 0 && b[0] == '{' {
		require.NoError(t, json.Unmarshal(b, &body), rec.Body.String())
	}
	return rec, body
}

func TestProxyCarriesRequestID(t *testing.T) {
	s := newStack(t)

	rec, body := s.do(t, http.MethodGet, "/api/users/42?expand=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rid := rec.Header().Get("X-Request-ID")
	assert.Len(t, rid, 36)
	assert.Equal(t, rid, body["rid"], "minted id travels upstream")
	assert.Equal(t, "expand=1", body["query"])

	rec, body = s.do(t, http.MethodDelete, "/api/users/42", http.Header{"X-Request-Id": {"abc"}})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc", body["rid"])
	assert.Equal(t, http.MethodDelete, body["method"])
}

func TestUnknownRoute(t *testing.T) {
	s := newStack(t)
	rec, body := s.do(t, http.MethodGet, "/api/nothing/here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route /api/nothing/here not found", body["error"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAggregatedRouteIsMetered(t *testing.T) {
	s := newStack(t)

	rec, body := s.do(t, http.MethodGet, "/api/aggregated/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"totalQuizzes": 1.0, "totalUsers": 1.0, "totalCourses": 1.0,
		"totalPosts": 1.0, "totalScores": 1.0, "totalFeedbacks": 1.0,
	}, body["stats"])

	rec, body = s.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byRoute := body["requests"].(map[string]any)["byRoute"].(map[string]any)
	assert.Equal(t, 1.0, byRoute["GET /api/aggregated/dashboard"])
	assert.NotNil(t, body["realtime"])

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), `route="GET /api/aggregated/dashboard"`)
}

func TestHealthEndpoint(t *testing.T) {
	s := newStack(t)
	rec, body := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["services"], 11)
	assert.NotNil(t, body["cache"])
}

func TestCacheAdmin(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	for _, k := range []string{"quiz_1", "quiz_2", "user_profile_7"} {
		require.NoError(t, s.cache.Set(ctx, k, map[string]string{"k": k}, time.Minute))
	}

	rec, body := s.do(t, http.MethodDelete, "/api/cache?pattern=quiz_*", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["deleted"])
	assert.Nil(t, body["error"])

	rec, body = s.do(t, http.MethodDelete, "/api/cache", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pattern is required", body["error"])

	rec, body = s.do(t, http.MethodDelete, "/api/cache/related/user_profile_7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, body["deleted"].(float64), 1.0)

	rec, body = s.do(t, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["memory"].(map[string]any)["size"])
}

func TestCORS(t *testing.T) {
	s := newStack(t)

	rec, _ := s.do(t, http.MethodOptions, "/api/users", http.Header{
		"Origin":                        {"http://app.local"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec, _ = s.do(t, http.MethodGet, "/api/users", http.Header{"Origin": {"http://evil.local"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicBecomes500(t *testing.T) {
	m := health.NewMetrics(health.MetricsOptions{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := chain(mux, requestID, observe(quizgate.NopLogger{}, m), recoverer(quizgate.NopLogger{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	snap := m.Snapshot(context.Background())
	assert.Equal(t, uint64(1), snap.Requests.Errors)
	assert.Equal(t, uint64(1), snap.Requests.ByRoute["GET /boom"])
}

func TestRunServesWebsocketAndShutsDown(t *testing.T) {
	s := newStack(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.srv.Serve(ctx, l) }()

	url := "ws://" + l.Addr().String() + "/socket"
	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://app.local"}})
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f realtime.Frame
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, "connected", f.Event)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
