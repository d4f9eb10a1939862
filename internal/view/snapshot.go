package view

import (
	"github.com/rflorenc/mesh-workbench/internal/filter"
	"github.com/rflorenc/mesh-workbench/internal/models"
	"github.com/rflorenc/mesh-workbench/internal/route"
)

// ListView is the list half of a snapshot. Rows are empty while loading and
// after an error.
type ListView struct {
	Loading    bool   `json:"loading"`
	Error      string `json:"error,omitempty"`
	Empty      bool   `json:"empty"`
	EmptyState string `json:"emptyState,omitempty"`
	Filter     string `json:"filter,omitempty"`
	Total      int    `json:"total"`
	HasNext    bool   `json:"hasNext"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	Table      Table  `json:"table"`
	Generation uint64 `json:"generation"`
	Revision   uint64 `json:"revision"`
}

// DetailView is the detail half of a snapshot.
type DetailView struct {
	Name       string                 `json:"name"`
	Loading    bool                   `json:"loading"`
	Error      string                 `json:"error,omitempty"`
	NotFound   bool                   `json:"notFound"`
	Detail     *models.ResourceDetail `json:"detail,omitempty"`
	Generation uint64                 `json:"generation"`
	Revision   uint64                 `json:"revision"`
}

// Snapshot is everything a client needs to draw the view. Seq numbers the
// snapshots pushed to an observer; it is zero on snapshots taken directly.
type Snapshot struct {
	Seq    uint64              `json:"seq,omitempty"`
	Type   models.ResourceType `json:"type"`
	Route  route.State         `json:"route"`
	Query  string              `json:"query"`
	List   ListView            `json:"list"`
	Detail *DetailView         `json:"detail,omitempty"`
}

// Snapshot returns the current state of the collection.
func (c *Collection) Snapshot() Snapshot {
	r := c.routes.State()
	ls := c.list.State()
	snap := Snapshot{
		Type:  c.rt,
		Route: r,
		Query: c.routes.Query().Encode(),
		List:  listView(c.rt, ls, r),
	}
	if r.Selected != "" {
		ds := c.detail.State()
		snap.Detail = &DetailView{
			Name:       r.Selected,
			Loading:    ds.Loading,
			Error:      ds.Error,
			NotFound:   ds.NotFound,
			Detail:     ds.Data,
			Generation: ds.Generation,
			Revision:   ds.Revision,
		}
	}
	return snap
}

func listView(rt models.ResourceType, ls ListState, r route.State) ListView {
	lv := ListView{
		Loading:    ls.Loading,
		Error:      ls.Error,
		Page:       r.Page,
		Size:       r.Size,
		Generation: ls.Generation,
		Revision:   ls.Revision,
		Filter:     filterText(r),
		Table:      Table{Headers: Columns(rt.Columns), Rows: []Row{}},
	}
	if ls.Loading || ls.Err != nil || ls.Data == nil {
		return lv
	}
	lv.Total = ls.Data.Total
	lv.HasNext = hasNext(ls)
	lv.Empty = ls.Empty
	if ls.Empty {
		lv.EmptyState = rt.EmptyState
	}
	lv.Table = BuildTable(rt, ls.Data.Items, r.Selected)
	return lv
}

// filterText is the normalized filter of r, empty when r filters nothing.
func filterText(r route.State) string {
	q, err := filter.Parse(r.Search)
	if err != nil {
		return ""
	}
	q = q.Merge(r.Tags)
	if q.Empty() {
		return ""
	}
	return q.String()
}
