package aggregate

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Object is a decoded upstream JSON document. Services own its shape; the
// gateway only reads the few fields it joins on.
type Object map[string]any

// ID returns the document's _id (or id) as a string.
func (o Object) ID() string {
	if id := idString(o["_id"]); id != "" {
		return id
	}
	return idString(o["id"])
}

// Str returns key as a string, "" when absent or not a string.
func (o Object) Str(key string) string {
	s, _ := o[key].(string)
	return s
}

// Num returns key as a number. Numeric strings are accepted.
func (o Object) Num(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Ref returns the id key points at: a plain id or a populated sub-document.
func (o Object) Ref(key string) string {
	return idString(o[key])
}

// Refs returns the ids of an array of plain ids or populated sub-documents.
func (o Object) Refs(key string) []string {
	arr, _ := o[key].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if id := idString(v); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the length of an array field, 0 otherwise.
func (o Object) Len(key string) int {
	arr, _ := o[key].([]any)
	return len(arr)
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any:
		return Object(x).ID()
	default:
		return ""
	}
}

func index(items []Object) map[string]Object {
	m := make(map[string]Object, len(items))
	for _, it := range items {
		if id := it.ID(); id != "" {
			m[id] = it
		}
	}
	return m
}

// List decodes either a bare array or a paginated envelope such as
// {"quizzes": [...], "total": 42}.
type List struct {
	Items    []Object
	Total    int
	HasTotal bool
}

var listKeys = []string{"data", "items", "results", "docs"}

func (l *List) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	l.Items = []Object{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, &l.Items)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	for _, k := range []string{"total", "count", "totalCount"} {
		if raw, ok := env[k]; ok {
			var n float64
			if json.Unmarshal(raw, &n) == nil {
				l.Total, l.HasTotal = int(n), true
				break
			}
		}
	}
	for _, k := range listKeys {
		if raw, ok := env[k]; ok && isArray(raw) {
			return json.Unmarshal(raw, &l.Items)
		}
	}
	// any other array field (e.g. "quizzes", "users")
	for _, raw := range env {
		if isArray(raw) {
			return json.Unmarshal(raw, &l.Items)
		}
	}
	return nil
}

// Count is Total when the service reported one, else the item count.
func (l List) Count() int {
	if l.HasTotal {
		return l.Total
	}
	return len(l.Items)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// Meta marks gateway-composed documents.
type Meta struct {
	Aggregated bool `json:"_aggregated"`
	Cached     bool `json:"_cached"`
}

var composed = Meta{Aggregated: true}

// overlay renders base with every field of v on top of it.
func overlay(base Object, v any) ([]byte, error) {
	top, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(top, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(base)+len(fields))
	for k, val := range base {
		out[k] = val
	}
	for k, val := range fields {
		out[k] = val
	}
	return json.Marshal(out)
}

func orEmpty(items []Object) []Object {
	if items == nil {
		return []Object{}
	}
	return items
}
