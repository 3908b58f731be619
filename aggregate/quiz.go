package aggregate

import (
	"context"
	"net/http"
	"net/url"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/util"
)

// QuizDetail is a quiz with its category, questions, comments and scores.
type QuizDetail struct {
	Quiz      Object   `json:"-"`
	Category  Object   `json:"category"`
	Questions []Object `json:"questions"`
	Comments  []Object `json:"comments"`
	Scores    []Object `json:"scores"`
	Meta
}

func (d QuizDetail) MarshalJSON() ([]byte, error) {
	type plain QuizDetail
	return overlay(d.Quiz, plain(d))
}

func (h *Handlers) QuizDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.serve(w, r, "quiz", util.Key("quiz", id), func(ctx context.Context) (any, error) {
		return h.quizDetail(ctx, id)
	})
}

func (h *Handlers) quizDetail(ctx context.Context, id string) (*QuizDetail, error) {
	pid := url.PathEscape(id)

	var s Settle
	quiz := Go(&s, func() (Object, error) { return get[Object](ctx, h, h.t.Quizzing, "/api/quizzes/"+pid) })
	cats := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/categories") })
	questions := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/questions") })
	comments := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Comments, "/api/comments/quiz/"+pid) })
	scores := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Scores, "/api/scores/quiz/"+pid) })
	s.Wait()

	if !quiz.OK() || len(quiz.Value) == 0 {
		return nil, &quizgate.NotFoundError{Resource: "Quiz", ID: id, Err: quiz.Err}
	}
	q := quiz.Value

	d := &QuizDetail{
		Quiz:      q,
		Questions: []Object{},
		Comments:  orEmpty(secondary(h, "quiz", "comments", comments).Items),
		Scores:    orEmpty(secondary(h, "quiz", "scores", scores).Items),
		Meta:      composed,
	}
	if ref := q.Ref("category"); ref != "" {
		if c, ok := index(secondary(h, "quiz", "categories", cats).Items)[ref]; ok {
			d.Category = c
		}
	}
	if refs := q.Refs("questions"); len(refs) > 0 {
		all := index(secondary(h, "quiz", "questions", questions).Items)
		for _, qid := range refs {
			if qq, ok := all[qid]; ok {
				d.Questions = append(d.Questions, qq)
			}
		}
	}
	return d, nil
}
