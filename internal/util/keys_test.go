package util

import (
	"strings"
	"testing"
	"time"
)

func TestKeySkipsEmptyParts(t *testing.T) {
	if got := Key("quiz", "abc123"); got != "quiz_abc123" {
		t.Fatalf("Key: got %q", got)
	}
	if got := Key("dashboard", "stats"); got != "dashboard_stats" {
		t.Fatalf("Key: got %q", got)
	}
	if got := Key("search", "go", "", "1"); got != "search_go_1" {
		t.Fatalf("Key: got %q", got)
	}
}

func TestParamsKeyDeterministic(t *testing.T) {
	a := ParamsKey("quizzes", map[string]string{"page": "1", "limit": "10", "category": "c1", "search": ""})
	b := ParamsKey("quizzes", map[string]string{"category": "c1", "limit": "10", "page": "1"})
	if a != b {
		t.Fatalf("param order must not matter: %q vs %q", a, b)
	}
	if a != "quizzes_category=c1&limit=10&page=1" {
		t.Fatalf("unexpected key %q", a)
	}
	if got := ParamsKey("quizzes", nil); got != "quizzes" {
		t.Fatalf("empty params: got %q", got)
	}
}

func TestParamsKeyEscapesValues(t *testing.T) {
	split := ParamsKey("quizzes", map[string]string{"category": "x", "created_by": "y", "page": "1", "limit": "10"})
	packed := ParamsKey("quizzes", map[string]string{"category": "x&created_by=y", "page": "1", "limit": "10"})
	if split == packed {
		t.Fatalf("distinct parameter sets share key %q", split)
	}
	if packed != "quizzes_category=x%26created_by%3Dy&limit=10&page=1" {
		t.Fatalf("unexpected escaped key %q", packed)
	}
	if got := ParamsKey("search", map[string]string{"q": "go basics"}); got != "search_q=go+basics" {
		t.Fatalf("space not escaped: %q", got)
	}
}

func TestParamsKeyHashesLongSets(t *testing.T) {
	long := strings.Repeat("x", 400)
	k1 := ParamsKey("search", map[string]string{"q": long})
	k2 := ParamsKey("search", map[string]string{"q": long + "y"})
	if len(k1) != len("search_")+16 {
		t.Fatalf("hashed key length: got %d (%q)", len(k1), k1)
	}
	if k1 == k2 {
		t.Fatalf("distinct params must hash differently")
	}
	if !strings.HasPrefix(k1, "search_") {
		t.Fatalf("hashed key lost its endpoint prefix: %q", k1)
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0*time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("Coalesce zero: got %v", got)
	}
	if got := Coalesce("redis", "memory"); got != "redis" {
		t.Fatalf("Coalesce non-zero: got %v", got)
	}
}
