package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/glob"

	"github.com/unkn0wn-root/quizgate"
	c "github.com/unkn0wn-root/quizgate/codec"
	"github.com/unkn0wn-root/quizgate/internal/wire"
	pr "github.com/unkn0wn-root/quizgate/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// memProvider is a map-backed store that can simulate an unreachable remote.
type memProvider struct {
	mu      sync.Mutex
	m       map[string]memEntry
	down    bool  // Connected() reports false
	failErr error // returned by every op when set
}

var (
	_ pr.Provider     = (*memProvider)(nil)
	_ pr.Scanner      = (*memProvider)(nil)
	_ pr.Connectivity = (*memProvider)(nil)
)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return nil, false, p.failErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return false, p.failErr
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	delete(p.m, key)
	return nil
}

func (p *memProvider) Keys(_ context.Context, pattern string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return nil, p.failErr
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for k := range p.m {
		if g.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *memProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

type recHooks struct {
	quizgate.NopHooks
	mu      sync.Mutex
	corrupt []string
	failed  []string
}

func (h *recHooks) CorruptEntry(tier, key string) {
	h.mu.Lock()
	h.corrupt = append(h.corrupt, tier+":"+key)
	h.mu.Unlock()
}

func (h *recHooks) RemoteOpFailed(op, key string, _ error) {
	h.mu.Lock()
	h.failed = append(h.failed, op+":"+key)
	h.mu.Unlock()
}

type quiz struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func newTestCache(t *testing.T, remote, local *memProvider, optsOpt func(*Options)) *TwoTier {
	t.Helper()
	opts := Options{Local: local}
	if remote != nil {
		opts.Remote = remote
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	tt, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tt
}

func mustGetQuiz(t *testing.T, tt *TwoTier, key string) quiz {
	t.Helper()
	var q quiz
	if !tt.GetInto(context.Background(), key, &q) {
		t.Fatalf("expected hit for %q", key)
	}
	return q
}

func TestNewRequiresLocal(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoLocal) {
		t.Fatalf("expected ErrNoLocal, got %v", err)
	}
}

// TestWriteThroughBothTiers verifies Set writes both tiers and Get prefers remote.
func TestWriteThroughBothTiers(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	tt := newTestCache(t, remote, local, nil)

	if _, ok := tt.Get(ctx, "quiz_abc123"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	v := quiz{ID: "abc123", Title: "Go basics", Category: "catX"}
	if err := tt.Set(ctx, "quiz_abc123", v, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !remote.has("quiz_abc123") || !local.has("quiz_abc123") {
		t.Fatalf("Set must write both tiers")
	}
	if got := mustGetQuiz(t, tt, "quiz_abc123"); got != v {
		t.Fatalf("Get: got %+v want %+v", got, v)
	}

	st := tt.Stats(ctx)
	if st.Counters.RemoteHits != 1 || st.Counters.LocalHits != 0 {
		t.Fatalf("expected remote hit, stats=%+v", st.Counters)
	}
	if st.Counters.Hits != 1 || st.Counters.Misses != 1 || st.Counters.Sets != 1 {
		t.Fatalf("counters: %+v", st.Counters)
	}
	if !st.Remote.Enabled || !st.Remote.Connected {
		t.Fatalf("remote stats: %+v", st.Remote)
	}
}

// TestRemoteDownServesLocal verifies a disconnected remote is skipped for reads and writes.
func TestRemoteDownServesLocal(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	remote.down = true
	tt := newTestCache(t, remote, local, nil)

	if err := tt.Set(ctx, "quiz_1", quiz{ID: "1"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if remote.has("quiz_1") {
		t.Fatalf("disconnected remote must not be written")
	}
	if got := mustGetQuiz(t, tt, "quiz_1"); got.ID != "1" {
		t.Fatalf("local fallback returned %+v", got)
	}
	if st := tt.Stats(ctx); st.Counters.LocalHits != 1 || st.Remote.Connected {
		t.Fatalf("stats: %+v", st)
	}
}

// TestRemoteErrorFallsThrough verifies a failing remote read is a miss for that tier only.
func TestRemoteErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	hooks := &recHooks{}
	tt := newTestCache(t, remote, local, func(o *Options) { o.Hooks = hooks })

	if err := tt.Set(ctx, "quiz_1", quiz{ID: "1"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	remote.failErr = errors.New("connection reset by peer")

	if got := mustGetQuiz(t, tt, "quiz_1"); got.ID != "1" {
		t.Fatalf("expected local value, got %+v", got)
	}
	st := tt.Stats(ctx)
	if st.Counters.RemoteErrors != 1 || st.Counters.LocalHits != 1 {
		t.Fatalf("counters: %+v", st.Counters)
	}
	if len(hooks.failed) != 1 || hooks.failed[0] != "get:quiz_1" {
		t.Fatalf("hooks: %v", hooks.failed)
	}

	// remote write failure is not surfaced
	if err := tt.Set(ctx, "quiz_2", quiz{ID: "2"}, 0); err != nil {
		t.Fatalf("Set with failing remote: %v", err)
	}
	if !local.has("quiz_2") {
		t.Fatalf("local must be written regardless of remote outcome")
	}
}

// TestExpiredEntriesAreAbsent verifies the envelope TTL is enforced on read.
func TestExpiredEntriesAreAbsent(t *testing.T) {
	ctx := context.Background()
	local := newMemProvider()
	now := time.Unix(1_700_000_000, 0)
	tt := newTestCache(t, nil, local, func(o *Options) { o.Now = func() time.Time { return now } })

	if err := tt.Set(ctx, "dashboard_stats", map[string]int{"totalQuizzes": 3}, 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(9 * time.Second)
	if _, ok := tt.Get(ctx, "dashboard_stats"); !ok {
		t.Fatalf("entry expired early")
	}
	now = now.Add(time.Second)
	if _, ok := tt.Get(ctx, "dashboard_stats"); ok {
		t.Fatalf("expired entry served")
	}
	if local.has("dashboard_stats") {
		t.Fatalf("expired entry should be deleted lazily")
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	local := newMemProvider()
	tt := newTestCache(t, nil, local, nil)
	if tt.DefaultTTL() != 300*time.Second {
		t.Fatalf("default ttl: got %v", tt.DefaultTTL())
	}
	_ = tt.Set(context.Background(), "k", 1, 0)
	e, err := wire.Decode(local.m["k"].v)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.TTL != 300*time.Second {
		t.Fatalf("stored ttl: got %v", e.TTL)
	}
}

// TestCorruptRemoteEntry verifies corrupt remote bytes are dropped and local is consulted.
func TestCorruptRemoteEntry(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	hooks := &recHooks{}
	tt := newTestCache(t, remote, local, func(o *Options) { o.Hooks = hooks })

	_ = tt.Set(ctx, "quiz_1", quiz{ID: "1"}, 0)
	remote.put("quiz_1", []byte("garbage"))

	if got := mustGetQuiz(t, tt, "quiz_1"); got.ID != "1" {
		t.Fatalf("expected local value, got %+v", got)
	}
	if remote.has("quiz_1") {
		t.Fatalf("corrupt remote entry should be deleted")
	}
	if len(hooks.corrupt) != 1 || hooks.corrupt[0] != "remote:quiz_1" {
		t.Fatalf("hooks: %v", hooks.corrupt)
	}
}

func TestCorruptPayloadUnderValidEnvelope(t *testing.T) {
	ctx := context.Background()
	local := newMemProvider()
	tt := newTestCache(t, nil, local, nil)
	local.put("quiz_1", wire.Encode(time.Now(), time.Minute, []byte("{not json")))
	if _, ok := tt.Get(ctx, "quiz_1"); ok {
		t.Fatalf("invalid payload must not be served")
	}
	if local.has("quiz_1") {
		t.Fatalf("corrupt entry should be deleted")
	}
}

func TestSetRejectsUnencodable(t *testing.T) {
	tt := newTestCache(t, nil, newMemProvider(), nil)
	if err := tt.Set(context.Background(), "k", make(chan int), 0); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestRawMessageStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	tt := newTestCache(t, nil, newMemProvider(), nil)
	doc := json.RawMessage(`{"_id":"abc123","_aggregated":true,"_cached":false}`)
	_ = tt.Set(ctx, "quiz_abc123", doc, 0)
	got, ok := tt.Get(ctx, "quiz_abc123")
	if !ok || string(got) != string(doc) {
		t.Fatalf("Get: %s ok=%v", got, ok)
	}
}

func TestAlternateCodec(t *testing.T) {
	ctx := context.Background()
	cd, err := c.ByName("msgpack", 0)
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	tt := newTestCache(t, newMemProvider(), newMemProvider(), func(o *Options) { o.Codec = cd })
	v := quiz{ID: "abc123", Title: "Go basics"}
	_ = tt.Set(ctx, "quiz_abc123", v, 0)
	if got := mustGetQuiz(t, tt, "quiz_abc123"); got != v {
		t.Fatalf("got %+v want %+v", got, v)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	tt := newTestCache(t, remote, local, nil)
	_ = tt.Set(ctx, "quiz_1", quiz{ID: "1"}, 0)
	tt.Delete(ctx, "quiz_1")
	if remote.has("quiz_1") || local.has("quiz_1") {
		t.Fatalf("Delete must clear both tiers")
	}
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	local := newMemProvider()
	tt := newTestCache(t, nil, local, func(o *Options) { o.Disabled = true })
	if tt.Enabled() {
		t.Fatalf("expected disabled cache")
	}
	_ = tt.Set(ctx, "k", 1, 0)
	if local.has("k") {
		t.Fatalf("disabled cache wrote a value")
	}
}

// TestInvalidatePattern verifies both tiers are purged by glob and a key
// held by both tiers is counted once.
func TestInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	tt := newTestCache(t, remote, local, nil)
	for _, k := range []string{"quiz_1", "quiz_2", "quizzes_page=1", "dashboard_stats"} {
		_ = tt.Set(ctx, k, 1, 0)
	}
	raw, _, _ := local.Get(ctx, "quiz_1")
	local.put("quiz_3", raw)

	n, err := tt.InvalidatePattern(ctx, "quiz_*")
	if err != nil {
		t.Fatalf("InvalidatePattern: %v", err)
	}
	if n != 3 {
		t.Fatalf("removed: got %d want 3", n)
	}
	if got := tt.Stats(ctx).Counters.Deletes; got != 3 {
		t.Fatalf("deletes counter: got %d want 3", got)
	}
	for _, k := range []string{"quiz_1", "quiz_2", "quiz_3"} {
		if remote.has(k) || local.has(k) {
			t.Fatalf("%s survived invalidation", k)
		}
	}
	if !remote.has("quizzes_page=1") || !local.has("dashboard_stats") {
		t.Fatalf("unrelated keys were removed")
	}
}

func TestInvalidatePatternRemoteFailure(t *testing.T) {
	ctx := context.Background()
	remote, local := newMemProvider(), newMemProvider()
	tt := newTestCache(t, remote, local, nil)
	_ = tt.Set(ctx, "quiz_1", 1, 0)
	boom := errors.New("i/o timeout")
	remote.failErr = boom

	n, err := tt.InvalidatePattern(ctx, "quiz_*")
	var ierr *InvalidateError
	if !errors.As(err, &ierr) || ierr.RemoteErr == nil || ierr.LocalErr != nil {
		t.Fatalf("expected remote-only InvalidateError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("InvalidateError must unwrap to the tier error")
	}
	if n != 1 || local.has("quiz_1") {
		t.Fatalf("local tier should still be purged: n=%d", n)
	}
}

// TestInvalidateRelated verifies the related key families are busted together.
func TestInvalidateRelated(t *testing.T) {
	ctx := context.Background()
	local := newMemProvider()
	tt := newTestCache(t, nil, local, nil)
	keys := []string{"quiz_abc123", "user_profile_u1", "category_catX", "search_q=go", "dashboard_stats", "quizzes_page=1", "misc_abc123_x"}
	for _, k := range keys {
		_ = tt.Set(ctx, k, 1, 0)
	}

	if _, err := tt.InvalidateRelated(ctx, "abc123"); err != nil {
		t.Fatalf("InvalidateRelated: %v", err)
	}
	var left []string
	for _, k := range keys {
		if local.has(k) {
			left = append(left, k)
		}
	}
	sort.Strings(left)
	if strings.Join(left, ",") != "dashboard_stats,quizzes_page=1" {
		t.Fatalf("remaining keys: %v", left)
	}
}

func TestStatsListsLocalKeys(t *testing.T) {
	ctx := context.Background()
	tt := newTestCache(t, nil, newMemProvider(), func(o *Options) { o.StatsKeyLimit = 2 })
	for _, k := range []string{"c", "a", "b"} {
		_ = tt.Set(ctx, k, 1, 0)
	}
	st := tt.Stats(ctx)
	if st.Remote.Enabled {
		t.Fatalf("no remote configured")
	}
	if st.Local.Size != 3 {
		t.Fatalf("size: got %d want 3", st.Local.Size)
	}
	if strings.Join(st.Local.Keys, ",") != "a,b" {
		t.Fatalf("keys: %v", st.Local.Keys)
	}
}

func TestConcurrentGetSet(t *testing.T) {
	ctx := context.Background()
	tt := newTestCache(t, newMemProvider(), newMemProvider(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tt.Set(ctx, "quiz_1", quiz{ID: "1"}, 0)
				_, _ = tt.Get(ctx, "quiz_1")
			}
		}(i)
	}
	wg.Wait()
	st := tt.Stats(ctx)
	if st.Counters.Sets != 1600 {
		t.Fatalf("sets: got %d", st.Counters.Sets)
	}
}
