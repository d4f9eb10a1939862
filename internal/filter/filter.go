// Package filter parses the filter bar of list views.
//
// A query is a space separated list of field:value pairs. Values containing
// spaces are double-quoted. Words without a field are matched against names.
//
//	web name:backend service:redis tag:"kuma.io/protocol: http"
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Query is a parsed filter bar.
type Query struct {
	Name string
	Tags map[string]string
}

// Field shorthands for well-known tags.
var tagFields = map[string]string{
	"service":  "kuma.io/service",
	"protocol": "kuma.io/protocol",
	"zone":     "kuma.io/zone",
}

var knownFields = []string{"name", "protocol", "service", "tag", "zone"}

type token struct {
	field string
	value string
}

// Parse parses a filter bar query. An empty string is an empty Query.
func Parse(s string) (Query, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return Query{}, err
	}

	var q Query
	var names []string
	for _, t := range tokens {
		switch t.field {
		case "", "name":
			if t.value != "" {
				names = append(names, t.value)
			}
		case "tag":
			k, v, ok := strings.Cut(t.value, ":")
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if !ok || k == "" {
				return Query{}, fmt.Errorf("tag filter %q must be key:value", t.value)
			}
			q.setTag(k, v)
		default:
			tag, ok := tagFields[t.field]
			if !ok {
				return Query{}, unknownField(t.field)
			}
			q.setTag(tag, t.value)
		}
	}
	q.Name = strings.Join(names, " ")
	return q, nil
}

func (q *Query) setTag(k, v string) {
	if q.Tags == nil {
		q.Tags = map[string]string{}
	}
	q.Tags[k] = v
}

func unknownField(field string) error {
	if matches := fuzzy.Find(field, knownFields); len(matches) > 0 {
		return fmt.Errorf("unknown filter field %q, did you mean %q?", field, matches[0].Str)
	}
	return fmt.Errorf("unknown filter field %q, expected one of %s", field, strings.Join(knownFields, ", "))
}

// Empty reports whether the query filters nothing.
func (q Query) Empty() bool {
	return q.Name == "" && len(q.Tags) == 0
}

// String formats q back into filter bar syntax, tags sorted by key.
func (q Query) String() string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, "name:"+quote(q.Name))
	}
	keys := make([]string, 0, len(q.Tags))
	for k := range q.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "tag:"+quote(k+":"+q.Tags[k]))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}

// Merge returns q with extra tags added. Tags already in q win.
func (q Query) Merge(tags map[string]string) Query {
	if len(tags) == 0 {
		return q
	}
	out := Query{Name: q.Name, Tags: make(map[string]string, len(q.Tags)+len(tags))}
	for k, v := range tags {
		out.Tags[k] = v
	}
	for k, v := range q.Tags {
		out.Tags[k] = v
	}
	return out
}

func tokenize(s string) ([]token, error) {
	var tokens []token
	r := []rune(s)
	i := 0
	for i < len(r) {
		if isSpace(r[i]) {
			i++
			continue
		}

		var t token
		start := i
		for i < len(r) && !isSpace(r[i]) && r[i] != ':' && r[i] != '"' {
			i++
		}
		word := string(r[start:i])
		if i < len(r) && r[i] == ':' {
			t.field = strings.ToLower(word)
			i++
		} else {
			// A bare word: rewind and read it as a value.
			i = start
		}

		value, next, err := readValue(r, i)
		if err != nil {
			return nil, err
		}
		t.value = value
		i = next
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// readValue reads a quoted or unquoted value starting at r[i].
func readValue(r []rune, i int) (string, int, error) {
	if i < len(r) && r[i] == '"' {
		var sb strings.Builder
		for j := i + 1; j < len(r); j++ {
			switch r[j] {
			case '\\':
				if j+1 < len(r) {
					j++
					sb.WriteRune(r[j])
				}
			case '"':
				return sb.String(), j + 1, nil
			default:
				sb.WriteRune(r[j])
			}
		}
		return "", 0, fmt.Errorf("unterminated quote in filter %q", string(r))
	}
	start := i
	for i < len(r) && !isSpace(r[i]) {
		i++
	}
	return string(r[start:i]), i, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
