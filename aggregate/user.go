package aggregate

import (
	"context"
	"math"
	"net/http"
	"net/url"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/util"
)

type UserProfile struct {
	User           Object    `json:"-"`
	Scores         []Object  `json:"scores"`
	CreatedQuizzes []Object  `json:"createdQuizzes"`
	Comments       []Object  `json:"comments"`
	Stats          UserStats `json:"stats"`
	Meta
}

type UserStats struct {
	TotalQuizzes  int     `json:"totalQuizzes"`
	TotalScores   int     `json:"totalScores"`
	TotalComments int     `json:"totalComments"`
	AverageScore  float64 `json:"averageScore"`
}

func (p UserProfile) MarshalJSON() ([]byte, error) {
	type plain UserProfile
	return overlay(p.User, plain(p))
}

func (h *Handlers) UserProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.serve(w, r, "user", util.Key("user_profile", id), func(ctx context.Context) (any, error) {
		return h.userProfile(ctx, id)
	})
}

func (h *Handlers) userProfile(ctx context.Context, id string) (*UserProfile, error) {
	pid := url.PathEscape(id)

	var s Settle
	user := Go(&s, func() (Object, error) { return get[Object](ctx, h, h.t.Users, "/api/users/"+pid) })
	scores := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Scores, "/api/scores/user/"+pid) })
	created := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/quizzes/created-by/"+pid) })
	comments := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Comments, "/api/comments/user/"+pid) })
	s.Wait()

	if !user.OK() || len(user.Value) == 0 {
		return nil, &quizgate.NotFoundError{Resource: "User", ID: id, Err: user.Err}
	}

	p := &UserProfile{
		User:           user.Value,
		Scores:         orEmpty(secondary(h, "user", "scores", scores).Items),
		CreatedQuizzes: orEmpty(secondary(h, "user", "createdQuizzes", created).Items),
		Comments:       orEmpty(secondary(h, "user", "comments", comments).Items),
		Meta:           composed,
	}
	p.Stats = UserStats{
		TotalQuizzes:  len(p.CreatedQuizzes),
		TotalScores:   len(p.Scores),
		TotalComments: len(p.Comments),
		AverageScore:  averageScore(p.Scores),
	}
	return p, nil
}

// averageScore is the mean of the score fields rounded to two decimals;
// a record without a numeric score counts as 0.
func averageScore(scores []Object) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		if v, ok := s.Num("score"); ok {
			sum += v
		}
	}
	return math.Round(sum/float64(len(scores))*100) / 100
}
