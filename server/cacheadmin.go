package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/cache"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
)

// CacheAdmin is the invalidation surface of the two-tier cache.
type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
	InvalidateRelated(ctx context.Context, key string) (int, error)
}

type invalidation struct {
	Pattern string `json:"pattern,omitempty"`
	Key     string `json:"key,omitempty"`
	Deleted int    `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

func registerCacheAdmin(mux *http.ServeMux, c CacheAdmin, log quizgate.Logger) {
	mux.HandleFunc("GET /api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, c.Stats(r.Context()))
	})

	// A partial failure (one tier unreachable) still answers 200 and
	// reports the error next to what was deleted.
	mux.HandleFunc("DELETE /api/cache", func(w http.ResponseWriter, r *http.Request) {
		pattern := strings.TrimSpace(r.URL.Query().Get("pattern"))
		if pattern == "" {
			httpx.Fail(w, &quizgate.ValidationError{Field: "pattern", Message: "pattern is required"})
			return
		}
		n, err := c.InvalidatePattern(r.Context(), pattern)
		out := invalidation{Pattern: pattern, Deleted: n}
		if err != nil {
			log.Warn("cache invalidation incomplete", quizgate.Fields{"pattern": pattern, "err": err})
			out.Error = err.Error()
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("DELETE /api/cache/related/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		n, err := c.InvalidateRelated(r.Context(), key)
		out := invalidation{Key: key, Deleted: n}
		if err != nil {
			log.Warn("related cache invalidation incomplete", quizgate.Fields{"key": key, "err": err})
			out.Error = err.Error()
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	})
}
