package bigcache

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Minute, CleanWindow: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestSetGetDel(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	if _, ok, err := p.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	_, _ = p.Set(ctx, "quiz_1", []byte("v"), 1, 0)
	b, ok, err := p.Get(ctx, "quiz_1")
	if !ok || err != nil || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "quiz_1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "quiz_1"); err != nil {
		t.Fatalf("Del of missing key: %v", err)
	}
}

func TestKeysAndLen(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	for _, k := range []string{"category_1", "category_2", "quiz_9"} {
		_, _ = p.Set(ctx, k, []byte("v"), 1, 0)
	}
	keys, err := p.Keys(ctx, "category_*")
	if err != nil || len(keys) != 2 {
		t.Fatalf("Keys: %v err=%v", keys, err)
	}
	if p.Len() != 3 {
		t.Fatalf("Len: got %d", p.Len())
	}
}
