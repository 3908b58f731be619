package aggregate

import (
	"context"
	"math"
	"net/http"
	"net/url"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/util"
)

type CategoryDetail struct {
	Category  Object        `json:"-"`
	Quizzes   []Object      `json:"quizzes"`
	Questions []Object      `json:"questions"`
	Stats     CategoryStats `json:"stats"`
	Meta
}

type CategoryStats struct {
	TotalQuizzes      int     `json:"totalQuizzes"`
	TotalQuestions    int     `json:"totalQuestions"`
	AverageDifficulty float64 `json:"averageDifficulty"`
}

func (d CategoryDetail) MarshalJSON() ([]byte, error) {
	type plain CategoryDetail
	return overlay(d.Category, plain(d))
}

func (h *Handlers) CategoryDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.serve(w, r, "category", util.Key("category", id), func(ctx context.Context) (any, error) {
		return h.categoryDetail(ctx, id)
	})
}

func (h *Handlers) categoryDetail(ctx context.Context, id string) (*CategoryDetail, error) {
	pid := url.PathEscape(id)

	var s Settle
	cat := Go(&s, func() (Object, error) { return get[Object](ctx, h, h.t.Quizzing, "/api/categories/"+pid) })
	quizzes := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/quizzes/category/"+pid) })
	questions := Go(&s, func() (List, error) { return get[List](ctx, h, h.t.Quizzing, "/api/questions") })
	s.Wait()

	if !cat.OK() || len(cat.Value) == 0 {
		return nil, &quizgate.NotFoundError{Resource: "Category", ID: id, Err: cat.Err}
	}

	d := &CategoryDetail{
		Category:  cat.Value,
		Quizzes:   orEmpty(secondary(h, "category", "quizzes", quizzes).Items),
		Questions: []Object{},
		Meta:      composed,
	}

	wanted := make(map[string]struct{})
	for _, q := range d.Quizzes {
		for _, qid := range q.Refs("questions") {
			wanted[qid] = struct{}{}
		}
	}
	if len(wanted) > 0 {
		for _, q := range secondary(h, "category", "questions", questions).Items {
			if _, ok := wanted[q.ID()]; ok {
				d.Questions = append(d.Questions, q)
			}
		}
	}

	d.Stats = CategoryStats{
		TotalQuizzes:      len(d.Quizzes),
		TotalQuestions:    len(d.Questions),
		AverageDifficulty: averageDifficulty(d.Quizzes),
	}
	return d, nil
}

// averageDifficulty treats a missing or non-numeric difficulty as 1.
func averageDifficulty(quizzes []Object) float64 {
	if len(quizzes) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range quizzes {
		v, ok := q.Num("difficulty")
		if !ok {
			v = 1
		}
		sum += v
	}
	return math.Round(sum/float64(len(quizzes))*100) / 100
}
