package upstream

import (
	"fmt"
	"sort"
	"strings"
)

// Service names; config keys are <NAME>_SERVICE_URL.
const (
	Users      = "users"
	Quizzing   = "quizzing"
	Posts      = "posts"
	Schools    = "schools"
	Courses    = "courses"
	Scores     = "scores"
	Downloads  = "downloads"
	Contacts   = "contacts"
	Feedbacks  = "feedbacks"
	Comments   = "comments"
	Statistics = "statistics"
)

// Target is one backing service.
type Target struct {
	Name    string `json:"name"`
	BaseURL string `json:"url"`
}

// URL joins the base URL with a path that already carries its raw query.
func (t Target) URL(pathAndQuery string) string {
	base := strings.TrimRight(t.BaseURL, "/")
	if pathAndQuery == "" || pathAndQuery[0] != '/' {
		pathAndQuery = "/" + pathAndQuery
	}
	return base + pathAndQuery
}

type Route struct {
	Prefix string
	Target Target
}

// Resources maps every proxied /api/<resource> to its owning service.
var Resources = []struct{ Resource, Service string }{
	{"users", Users},
	{"quizzes", Quizzing},
	{"categories", Quizzing},
	{"questions", Quizzing},
	{"adverts", Posts},
	{"faqs", Posts},
	{"blog-posts", Posts},
	{"courses", Courses},
	{"chapters", Courses},
	{"notes", Courses},
	{"scores", Scores},
	{"downloads", Downloads},
	{"contacts", Contacts},
	{"broadcasts", Contacts},
	{"chat-rooms", Contacts},
	{"room-messages", Contacts},
	{"feedbacks", Feedbacks},
	{"comments", Comments},
	{"statistics", Statistics},
	{"schools", Schools},
}

// Table is an ordered prefix routing table. The first matching prefix wins.
type Table struct {
	routes []Route
}

func NewTable(routes ...Route) *Table {
	return &Table{routes: append([]Route(nil), routes...)}
}

// DefaultTable routes every entry of Resources to its service in targets.
func DefaultTable(targets map[string]Target) (*Table, error) {
	routes := make([]Route, 0, len(Resources))
	for _, r := range Resources {
		t, ok := targets[r.Service]
		if !ok || t.BaseURL == "" {
			return nil, fmt.Errorf("upstream: no URL configured for service %q", r.Service)
		}
		routes = append(routes, Route{Prefix: "/api/" + r.Resource, Target: t})
	}
	return NewTable(routes...), nil
}

// Match returns the first route whose prefix owns path. A prefix owns the
// exact path and anything below it ("/api/users" owns "/api/users/42" but
// not "/api/users-archive").
func (t *Table) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if path == r.Prefix || strings.HasPrefix(path, strings.TrimRight(r.Prefix, "/")+"/") {
			return r, true
		}
	}
	return Route{}, false
}

func (t *Table) Routes() []Route { return append([]Route(nil), t.routes...) }

// Targets returns each distinct target once, sorted by name.
func (t *Table) Targets() []Target {
	seen := make(map[string]Target)
	for _, r := range t.routes {
		seen[r.Target.Name] = r.Target
	}
	out := make([]Target, 0, len(seen))
	for _, tg := range seen {
		out = append(out, tg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
