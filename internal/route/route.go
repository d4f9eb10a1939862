// Package route keeps the state of a list view in URL query parameters.
package route

import (
	"maps"
	"net/url"
	"strconv"
)

const (
	DefaultSize = 50
	MaxSize     = 1000
)

// State is what a list view displays. It round-trips through the URL query.
type State struct {
	Mesh     string            `json:"mesh,omitempty"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
	Search   string            `json:"s,omitempty"`
	Offset   string            `json:"offset,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Selected string            `json:"selected,omitempty"`
}

var (
	meshParam     = StringParam("mesh")
	pageParam     = IntParam("page", 1)
	searchParam   = StringParam("s")
	offsetParam   = StringParam("offset")
	tagParam      = TagParam{Name: "tag"}
	selectedParam = StringParam("selected")
)

func sizeParam(def int) Param[int] {
	return IntParam("size", def)
}

// Parse reads a State from query parameters. defaultSize applies when size is
// absent; a non-positive defaultSize means DefaultSize.
func Parse(q url.Values, defaultSize int) State {
	defaultSize = normalizeSize(defaultSize, DefaultSize)
	s := State{
		Mesh:     meshParam.Get(q),
		Page:     pageParam.Get(q),
		Size:     normalizeSize(sizeParam(defaultSize).Get(q), defaultSize),
		Search:   searchParam.Get(q),
		Offset:   offsetParam.Get(q),
		Tags:     tagParam.Get(q),
		Selected: selectedParam.Get(q),
	}
	if s.Page == 1 {
		s.Offset = ""
	}
	return s
}

// Encode writes s as query parameters, leaving out defaults.
func (s State) Encode(defaultSize int) url.Values {
	defaultSize = normalizeSize(defaultSize, DefaultSize)
	q := url.Values{}
	meshParam.Set(q, s.Mesh)
	pageParam.Set(q, max(s.Page, 1))
	sizeParam(defaultSize).Set(q, normalizeSize(s.Size, defaultSize))
	searchParam.Set(q, s.Search)
	if s.Page > 1 {
		offsetParam.Set(q, s.Offset)
	}
	tagParam.Set(q, s.Tags)
	selectedParam.Set(q, s.Selected)
	return q
}

// RequestOffset is the offset to request from the control plane. Without an
// explicit offset it is derived from the page number.
func (s State) RequestOffset() string {
	if s.Page <= 1 {
		return ""
	}
	if s.Offset != "" {
		return s.Offset
	}
	return strconv.Itoa((s.Page - 1) * s.Size)
}

// SameFilter reports whether a and b show the same collection.
func SameFilter(a, b State) bool {
	return a.Mesh == b.Mesh && a.Search == b.Search && a.Size == b.Size && maps.Equal(a.Tags, b.Tags)
}

// Clone returns a copy of s that shares no maps with it.
func (s State) Clone() State {
	s.Tags = maps.Clone(s.Tags)
	return s
}

func normalizeSize(size, def int) int {
	switch {
	case size <= 0:
		return def
	case size > MaxSize:
		return MaxSize
	}
	return size
}
