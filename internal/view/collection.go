// Package view composes the list and detail loaders of one resource type with
// the route controller that drives them.
package view

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/filter"
	"github.com/rflorenc/mesh-workbench/internal/loader"
	"github.com/rflorenc/mesh-workbench/internal/models"
	"github.com/rflorenc/mesh-workbench/internal/route"
)

// DefaultMesh is used for mesh-scoped types when the route names no mesh.
const DefaultMesh = "default"

// DetailParams identifies the selected item.
type DetailParams struct {
	Mesh string `json:"mesh,omitempty"`
	Name string `json:"name"`
}

type (
	ListLoader   = loader.Loader[route.State, *models.ResourcePage]
	DetailLoader = loader.Loader[DetailParams, *models.ResourceDetail]
	ListState    = loader.State[route.State, *models.ResourcePage]
	DetailState  = loader.State[DetailParams, *models.ResourceDetail]
)

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger of the collection and its loaders.
func WithLogger(log logr.Logger) Option {
	return func(c *Collection) { c.log = log }
}

// WithDefaultSize sets the page size used when the route names none.
func WithDefaultSize(size int) Option {
	return func(c *Collection) { c.defaultSize = size }
}

// WithObserver registers fn to receive a snapshot after every loader transition.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Collection) { c.observer = fn }
}

// Collection is a paginated list of one resource type with a drill-down
// detail. The list and detail loaders are independent: a failing detail never
// touches the list.
type Collection struct {
	rt          models.ResourceType
	cp          controlplane.ControlPlane
	routes      *route.Controller
	list        *ListLoader
	detail      *DetailLoader
	log         logr.Logger
	defaultSize int
	observer    func(Snapshot)

	// notifyMu serializes snapshots so the observer sees them in Seq order
	// and the last one reflects the latest state of both loaders.
	notifyMu sync.Mutex
	seq      uint64
}

// NewCollection creates the view of rt starting at initial.
func NewCollection(cp controlplane.ControlPlane, rt models.ResourceType, initial route.State, opts ...Option) *Collection {
	c := &Collection{
		rt:          rt,
		cp:          cp,
		log:         logr.Discard(),
		defaultSize: route.DefaultSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithValues("type", rt.Name)

	if rt.MeshScoped && initial.Mesh == "" {
		initial.Mesh = DefaultMesh
	}
	c.routes = route.NewController(initial, c.defaultSize)

	c.list = loader.New("list", c.fetchList,
		loader.WithEmpty[route.State](func(p *models.ResourcePage) bool { return p.Len() == 0 }),
		loader.WithLogger[route.State, *models.ResourcePage](c.log),
		loader.WithObserver(func(ListState) { c.notify() }),
	)
	c.detail = loader.New("detail", c.fetchDetail,
		loader.WithNotFound[DetailParams, *models.ResourceDetail](controlplane.IsNotFound),
		loader.WithLogger[DetailParams, *models.ResourceDetail](c.log),
		loader.WithObserver(func(DetailState) { c.notify() }),
	)
	return c
}

func (c *Collection) notify() {
	if c.observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.seq++
	snap := c.Snapshot()
	snap.Seq = c.seq
	c.observer(snap)
}

// Type returns the resource type of the collection.
func (c *Collection) Type() models.ResourceType {
	return c.rt
}

// Route returns the current route state.
func (c *Collection) Route() route.State {
	return c.routes.State()
}

// ListRequest translates a route state into the control-plane page request.
// The filter bar text is parsed; explicit route tags are merged under it.
func ListRequest(s route.State) (controlplane.PageRequest, error) {
	q, err := filter.Parse(s.Search)
	if err != nil {
		return controlplane.PageRequest{}, err
	}
	q = q.Merge(s.Tags)
	return controlplane.PageRequest{
		Size:   s.Size,
		Offset: s.RequestOffset(),
		Name:   q.Name,
		Tags:   q.Tags,
	}, nil
}

func (c *Collection) fetchList(ctx context.Context, s route.State) (*models.ResourcePage, error) {
	req, err := ListRequest(s)
	if err != nil {
		return nil, err
	}
	return c.cp.ListPage(ctx, c.rt, s.Mesh, req)
}

func (c *Collection) fetchDetail(ctx context.Context, p DetailParams) (*models.ResourceDetail, error) {
	return Detail(ctx, c.cp, c.rt, p)
}

// Detail fetches one resource with its summary and secondary lookups.
func Detail(ctx context.Context, cp controlplane.ControlPlane, rt models.ResourceType, p DetailParams) (*models.ResourceDetail, error) {
	res, err := cp.GetResource(ctx, rt, p.Mesh, p.Name)
	if err != nil {
		return nil, err
	}
	return &models.ResourceDetail{
		Summary:  Summarize(rt, res),
		Resource: res,
		Related:  cp.Related(ctx, rt, p.Mesh, p.Name),
	}, nil
}

// Load fetches the list and, when an item is selected, its detail.
func (c *Collection) Load(ctx context.Context) Snapshot {
	c.load(ctx, c.routes.State(), true, true)
	return c.Snapshot()
}

// Navigate moves to a new route state, as on a URL change, and reloads what it affects.
func (c *Collection) Navigate(ctx context.Context, to route.State) Snapshot {
	if c.rt.MeshScoped && to.Mesh == "" {
		to.Mesh = DefaultMesh
	}
	before := c.routes.State()
	after := c.routes.Navigate(to)

	listChanged := !sameListParams(before, after) || c.list.State().Generation == 0
	detailChanged := before.Selected != after.Selected || before.Mesh != after.Mesh ||
		(after.Selected != "" && c.detail.State().Generation == 0)
	c.load(ctx, after, listChanged, detailChanged)
	return c.Snapshot()
}

// NextPage advances one page when the current page has a successor.
func (c *Collection) NextPage(ctx context.Context) Snapshot {
	st := c.list.State()
	if !hasNext(st) {
		return c.Snapshot()
	}
	var next string
	if st.Data.HasNext() {
		next = *st.Data.Next
	}
	s := c.routes.NextPage(next)
	c.load(ctx, s, true, false)
	return c.Snapshot()
}

// PreviousPage goes back one page.
func (c *Collection) PreviousPage(ctx context.Context) Snapshot {
	before := c.routes.State()
	s := c.routes.PreviousPage()
	c.load(ctx, s, s.Page != before.Page, false)
	return c.Snapshot()
}

// SetSearch changes the filter bar text and reloads the first page.
func (c *Collection) SetSearch(ctx context.Context, search string) Snapshot {
	c.load(ctx, c.routes.SetSearch(search), true, false)
	return c.Snapshot()
}

// SetTags changes the tag filters and reloads the first page.
func (c *Collection) SetTags(ctx context.Context, tags map[string]string) Snapshot {
	c.load(ctx, c.routes.SetTags(tags), true, false)
	return c.Snapshot()
}

// SetSize changes the page size and reloads the first page.
func (c *Collection) SetSize(ctx context.Context, size int) Snapshot {
	c.load(ctx, c.routes.SetSize(size), true, false)
	return c.Snapshot()
}

// SetMesh moves the view to another mesh, clearing the selection. Types that
// are not mesh scoped ignore it.
func (c *Collection) SetMesh(ctx context.Context, mesh string) Snapshot {
	if !c.rt.MeshScoped {
		return c.Snapshot()
	}
	if mesh == "" {
		mesh = DefaultMesh
	}
	c.load(ctx, c.routes.SetMesh(mesh), true, true)
	return c.Snapshot()
}

// Select loads the detail of id without touching the list. An empty id
// clears the detail.
func (c *Collection) Select(ctx context.Context, id string) Snapshot {
	c.load(ctx, c.routes.Select(id), false, true)
	return c.Snapshot()
}

func (c *Collection) load(ctx context.Context, s route.State, list, detail bool) {
	var wg sync.WaitGroup
	if list {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.list.Load(ctx, s)
		}()
	}
	if detail {
		if s.Selected == "" {
			if ds := c.detail.State(); ds.Loading || ds.Params != (DetailParams{}) {
				c.detail.Reset()
			}
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.detail.Load(ctx, DetailParams{Mesh: s.Mesh, Name: s.Selected})
			}()
		}
	}
	wg.Wait()
}

func sameListParams(a, b route.State) bool {
	return route.SameFilter(a, b) && a.Page == b.Page && a.RequestOffset() == b.RequestOffset()
}

// hasNext reports whether a following page exists, from the "next" link or,
// for backends that only report a total, from the numeric offset.
func hasNext(st ListState) bool {
	page := st.Data
	if st.Err != nil || page == nil {
		return false
	}
	if page.HasNext() {
		return true
	}
	offset := 0
	if raw := st.Params.RequestOffset(); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return false
		}
		offset = n
	}
	return page.Total > offset+page.Len()
}
