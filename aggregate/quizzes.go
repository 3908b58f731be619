package aggregate

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/quizgate/internal/httpx"
	"github.com/unkn0wn-root/quizgate/internal/util"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// forwarded quiz list filters
var quizFilters = []string{"category", "search", "difficulty", "created_by"}

type QuizList struct {
	Quizzes    []QuizSummary `json:"quizzes"`
	Pagination Pagination    `json:"pagination"`
	Meta
}

// QuizSummary is a quiz enriched with display fields.
type QuizSummary struct {
	Quiz          Object `json:"-"`
	CategoryName  string `json:"categoryName"`
	CategorySlug  string `json:"categorySlug"`
	CreatorName   string `json:"creatorName"`
	QuestionCount int    `json:"questionCount"`
	EstimatedTime int    `json:"estimatedTime"` // minutes, two per question
}

func (s QuizSummary) MarshalJSON() ([]byte, error) {
	type plain QuizSummary
	return overlay(s.Quiz, plain(s))
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (h *Handlers) QuizList(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	page, limit := paging(qs)

	params := map[string]string{"page": strconv.Itoa(page), "limit": strconv.Itoa(limit)}
	for _, f := range quizFilters {
		params[f] = strings.TrimSpace(qs.Get(f))
	}
	h.serve(w, r, "quizzes", util.ParamsKey("quizzes", params), func(ctx context.Context) (any, error) {
		return h.quizList(ctx, params, page, limit)
	})
}

func (h *Handlers) quizList(ctx context.Context, params map[string]string, page, limit int) (*QuizList, error) {
	fwd := url.Values{}
	for k, v := range params {
		if v != "" {
			fwd.Set(k, v)
		}
	}

	var s Settle
	quizzes := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/quizzes?"+fwd.Encode()) })
	cats := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/categories") })
	users := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Users, "/api/users") })
	s.Wait()

	if !quizzes.OK() {
		return nil, &httpx.StatusError{Status: http.StatusInternalServerError, Message: "Failed to fetch quizzes", Err: quizzes.Err}
	}
	catByID := index(secondary(h, "quizzes", "categories", cats).Items)
	userByID := index(secondary(h, "quizzes", "users", users).Items)

	out := &QuizList{Quizzes: make([]QuizSummary, 0, len(quizzes.Value.Items)), Meta: composed}
	for _, q := range quizzes.Value.Items {
		n := q.Len("questions")
		sum := QuizSummary{
			Quiz:          q,
			CategoryName:  "Unknown",
			CreatorName:   "Unknown",
			QuestionCount: n,
			EstimatedTime: n * 2,
		}
		if c, ok := catByID[q.Ref("category")]; ok {
			sum.CategoryName = firstNonEmpty(c.Str("title"), c.Str("name"), "Unknown")
			sum.CategorySlug = c.Str("slug")
		}
		if u, ok := userByID[q.Ref("created_by")]; ok {
			sum.CreatorName = firstNonEmpty(u.Str("name"), u.Str("username"), "Unknown")
		}
		out.Quizzes = append(out.Quizzes, sum)
	}

	total := quizzes.Value.Count()
	out.Pagination = Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
	return out, nil
}

func paging(qs url.Values) (page, limit int) {
	page, limit = defaultPage, defaultLimit
	if n, err := strconv.Atoi(qs.Get("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(qs.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxLimit)
	}
	return page, limit
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
