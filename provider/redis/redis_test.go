package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	p, err := New(Config{Client: client, CloseClient: true, ReconnectInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	waitFor(t, "initial connect", p.Connected)
	return p, mr
}

func TestNewNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestGetSetDel(t *testing.T) {
	p, mr := newTestRedis(t)
	ctx := context.Background()

	if _, ok, err := p.Get(ctx, "quiz_abc123"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "quiz_abc123", []byte("payload"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "quiz_abc123")
	if err != nil || !ok || string(b) != "payload" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if ttl := mr.TTL("quiz_abc123"); ttl != time.Minute {
		t.Fatalf("server ttl: got %v want 1m", ttl)
	}
	if err := p.Del(ctx, "quiz_abc123"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("quiz_abc123") {
		t.Fatalf("key still present after Del")
	}
}

func TestKeysAndDelMany(t *testing.T) {
	p, mr := newTestRedis(t)
	ctx := context.Background()
	for _, k := range []string{"quiz_1", "quiz_2", "user_profile_7", "search_go"} {
		_ = mr.Set(k, "x")
	}

	keys, err := p.Keys(ctx, "quiz_*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "quiz_1" || keys[1] != "quiz_2" {
		t.Fatalf("Keys: got %v", keys)
	}

	n, err := p.DelMany(ctx, append(keys, "missing"))
	if err != nil || n != 2 {
		t.Fatalf("DelMany: n=%d err=%v", n, err)
	}
	if !mr.Exists("user_profile_7") || mr.Exists("quiz_1") {
		t.Fatalf("DelMany removed the wrong keys")
	}
}

func TestDisconnectAndRecover(t *testing.T) {
	p, mr := newTestRedis(t)
	ctx := context.Background()

	mr.Close()
	if _, _, err := p.Get(ctx, "k"); err == nil {
		t.Fatalf("expected transport error after server stop")
	}
	if p.Connected() {
		t.Fatalf("transport error must mark the tier disconnected")
	}
	if _, _, err := p.Get(ctx, "k"); err != ErrDisconnected {
		t.Fatalf("disconnected tier must fail fast, got %v", err)
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, "reconnect", p.Connected)
	if _, err := p.Set(ctx, "k", []byte("v"), 1, 0); err != nil {
		t.Fatalf("Set after reconnect: %v", err)
	}
}

func TestServerErrorKeepsConnection(t *testing.T) {
	p, mr := newTestRedis(t)
	mr.Lpush("list", "x")
	if _, _, err := p.Get(context.Background(), "list"); err == nil {
		t.Fatalf("expected WRONGTYPE error")
	}
	if !p.Connected() {
		t.Fatalf("server reply errors must not mark the tier down")
	}
}

func TestCallerContextKeepsConnection(t *testing.T) {
	p, _ := newTestRedis(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := p.Get(cancelled, "k"); err == nil {
		t.Fatalf("expected error from cancelled context")
	}
	if !p.Connected() {
		t.Fatalf("caller cancellation must not mark the tier down")
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if _, err := p.Set(expired, "k", []byte("v"), 1, 0); err == nil {
		t.Fatalf("expected error from expired deadline")
	}
	if !p.Connected() {
		t.Fatalf("caller deadline must not mark the tier down")
	}

	if _, ok, err := p.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("tier should still serve: ok=%v err=%v", ok, err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	p, _ := newTestRedis(t)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if p.Connected() {
		t.Fatalf("closed provider reports connected")
	}
}
