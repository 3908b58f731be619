package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestSetWaitGetDel(t *testing.T) {
	p, err := New(ForEntries(100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	defer func() { _ = p.Close(ctx) }()

	if _, ok, _ := p.Get(ctx, "quiz_1"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if ok, err := p.Set(ctx, "quiz_1", []byte("v"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	p.Wait()

	b, ok, err := p.Get(ctx, "quiz_1")
	if !ok || err != nil || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len: got %d", p.Len())
	}

	_ = p.Del(ctx, "quiz_1")
	if _, ok, _ := p.Get(ctx, "quiz_1"); ok {
		t.Fatal("expected miss after Del")
	}
}

func TestForEntriesDefault(t *testing.T) {
	cfg := ForEntries(0)
	if cfg.MaxCost != 1000 || cfg.NumCounters != 10000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
