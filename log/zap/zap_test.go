package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/quizgate"
)

func TestFieldsReachCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Warn("remote cache get failed", quizgate.Fields{"key": "quiz_1", "err": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["key"] != "quiz_1" || ctx["err"] != "boom" {
		t.Fatalf("context: %v", ctx)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level: %v", entries[0].Level)
	}
}

func TestWithAddsBaseFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := quizgate.With(ZapLogger{L: zap.New(core)}, quizgate.Fields{"component": "cache"})
	l.Info("hit", quizgate.Fields{"key": "k"})
	l.Debug("filtered", nil)

	if logs.Len() != 1 {
		t.Fatalf("entries: got %d", logs.Len())
	}
	ctx := logs.All()[0].ContextMap()
	if ctx["component"] != "cache" || ctx["key"] != "k" {
		t.Fatalf("context: %v", ctx)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("nonsense")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.L.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("unknown level should fall back to info")
	}
}
