package aggregate

import (
	"context"
	"net/http"
	"time"

	"github.com/unkn0wn-root/quizgate/upstream"
)

type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Meta
}

type DashboardStats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	TotalUsers     int `json:"totalUsers"`
	TotalCourses   int `json:"totalCourses"`
	TotalPosts     int `json:"totalPosts"`
	TotalScores    int `json:"totalScores"`
	TotalFeedbacks int `json:"totalFeedbacks"`
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "dashboard", "dashboard_stats", func(ctx context.Context) (any, error) {
		return h.dashboard(ctx), nil
	})
}

// dashboard never fails: every unreachable counter reads 0.
func (h *Handlers) dashboard(ctx context.Context) *Dashboard {
	count := func(t upstream.Target, path string) func() (List, error) {
		return func() (List, error) { return get[List](ctx, h, t, path) }
	}

	var s Settle
	quizzes := Go(&s, count(h.t.Quizzing, "/api/quizzes"))
	users := Go(&s, count(h.t.Users, "/api/users"))
	courses := Go(&s, count(h.t.Courses, "/api/courses"))
	posts := Go(&s, count(h.t.Posts, "/api/blog-posts"))
	scores := Go(&s, count(h.t.Scores, "/api/scores"))
	feedbacks := Go(&s, count(h.t.Feedbacks, "/api/feedbacks"))
	s.Wait()

	return &Dashboard{
		Stats: DashboardStats{
			TotalQuizzes:   secondary(h, "dashboard", "quizzes", quizzes).Count(),
			TotalUsers:     secondary(h, "dashboard", "users", users).Count(),
			TotalCourses:   secondary(h, "dashboard", "courses", courses).Count(),
			TotalPosts:     secondary(h, "dashboard", "posts", posts).Count(),
			TotalScores:    secondary(h, "dashboard", "scores", scores).Count(),
			TotalFeedbacks: secondary(h, "dashboard", "feedbacks", feedbacks).Count(),
		},
		LastUpdated: h.now().UTC(),
		Meta:        composed,
	}
}
