package route

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Param binds one query parameter to a typed value. Values equal to Default
// are left out of the query.
type Param[T comparable] struct {
	Name    string
	Default T
	Parse   func(string) (T, bool)
	Format  func(T) string
}

// Get reads the parameter, falling back to Default when absent or invalid.
func (p Param[T]) Get(q url.Values) T {
	raw := q.Get(p.Name)
	if raw == "" {
		return p.Default
	}
	v, ok := p.Parse(raw)
	if !ok {
		return p.Default
	}
	return v
}

// Set writes v, removing the parameter when v is the default.
func (p Param[T]) Set(q url.Values, v T) {
	if v == p.Default {
		q.Del(p.Name)
		return
	}
	q.Set(p.Name, p.Format(v))
}

// IntParam binds a positive integer.
func IntParam(name string, def int) Param[int] {
	return Param[int]{
		Name:    name,
		Default: def,
		Parse: func(s string) (int, bool) {
			n, err := strconv.Atoi(s)
			return n, err == nil && n > 0
		},
		Format: strconv.Itoa,
	}
}

// StringParam binds a free text value.
func StringParam(name string) Param[string] {
	return Param[string]{
		Name:   name,
		Parse:  func(s string) (string, bool) { return s, true },
		Format: func(s string) string { return s },
	}
}

// TagParam binds a repeated key:value parameter.
type TagParam struct {
	Name string
}

// Get collects every key:value pair. Values without a colon are ignored.
func (p TagParam) Get(q url.Values) map[string]string {
	var tags map[string]string
	for _, raw := range q[p.Name] {
		k, v, ok := strings.Cut(raw, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			continue
		}
		if tags == nil {
			tags = map[string]string{}
		}
		tags[k] = v
	}
	return tags
}

// Set writes tags sorted by key.
func (p TagParam) Set(q url.Values, tags map[string]string) {
	q.Del(p.Name)
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Add(p.Name, k+":"+tags[k])
	}
}
