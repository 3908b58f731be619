package aggregate

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/util"
	"github.com/unkn0wn-root/quizgate/upstream"
)

// search kinds in response order
var searchKinds = []string{"quizzes", "users", "posts", "courses"}

type SearchResults struct {
	Query        string              `json:"query"`
	Type         string              `json:"type"`
	Results      map[string][]Object `json:"results"`
	TotalResults int                 `json:"totalResults"`
	Pagination   Pagination          `json:"pagination"`
	Meta
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := strings.TrimSpace(qs.Get("q"))
	kind := strings.ToLower(strings.TrimSpace(qs.Get("type")))
	if kind == "" {
		kind = "all"
	}
	page, limit := paging(qs)

	key := util.ParamsKey("search", map[string]string{
		"q": q, "type": kind, "page": strconv.Itoa(page), "limit": strconv.Itoa(limit),
	})
	h.serve(w, r, "search", key, func(ctx context.Context) (any, error) {
		if q == "" {
			return nil, &quizgate.ValidationError{Field: "q", Message: "Search query is required"}
		}
		kinds, err := selectKinds(kind)
		if err != nil {
			return nil, err
		}
		return h.search(ctx, q, kind, kinds, page, limit), nil
	})
}

func selectKinds(kind string) ([]string, error) {
	if kind == "all" {
		return searchKinds, nil
	}
	for _, k := range searchKinds {
		if k == kind {
			return []string{k}, nil
		}
	}
	return nil, &quizgate.ValidationError{Field: "type", Message: "Invalid search type: " + kind}
}

func (h *Handlers) searchTarget(kind string) (upstream.Target, string) {
	switch kind {
	case "quizzes":
		return h.t.Quizzing, "/api/quizzes"
	case "users":
		return h.t.Users, "/api/users"
	case "posts":
		return h.t.Posts, "/api/blog-posts"
	default:
		return h.t.Courses, "/api/courses"
	}
}

func (h *Handlers) search(ctx context.Context, q, kind string, kinds []string, page, limit int) *SearchResults {
	query := url.Values{
		"search": {q},
		"page":   {strconv.Itoa(page)},
		"limit":  {strconv.Itoa(limit)},
	}.Encode()

	var s Settle
	branches := make(map[string]*Outcome[List], len(kinds))
	for _, k := range kinds {
		t, path := h.searchTarget(k)
		branches[k] = Go(&s, func() (List, error) { return get[List](ctx, h, t, path+"?"+query) })
	}
	s.Wait()

	out := &SearchResults{
		Query:      q,
		Type:       kind,
		Results:    make(map[string][]Object, len(kinds)),
		Pagination: Pagination{Page: page, Limit: limit},
		Meta:       composed,
	}
	for _, k := range kinds {
		items := orEmpty(secondary(h, "search", k, branches[k]).Items)
		out.Results[k] = items
		out.TotalResults += len(items)
	}
	out.Pagination.Total = out.TotalResults
	if limit > 0 {
		out.Pagination.Pages = (out.TotalResults + limit - 1) / limit
	}
	return out
}
