package route

import (
	"net/url"
	"strconv"
	"sync"
)

// Controller turns pagination and filter actions into route states.
//
// Moving forward pushes the current offset onto a back-stack so that
// cursor-based collections can be paged back without knowing their cursors.
type Controller struct {
	mu          sync.Mutex
	state       State
	back        []string
	defaultSize int
}

// NewController starts from initial, typically parsed from a URL.
func NewController(initial State, defaultSize int) *Controller {
	defaultSize = normalizeSize(defaultSize, DefaultSize)
	initial = initial.Clone()
	initial.Page = max(initial.Page, 1)
	initial.Size = normalizeSize(initial.Size, defaultSize)
	return &Controller{state: initial, defaultSize: defaultSize}
}

// State returns the current route state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Query returns the current state encoded as URL query parameters.
func (c *Controller) Query() url.Values {
	return c.State().Encode(c.defaultSize)
}

// NextPage advances one page. next is the "next" link of the current page;
// when it carries no offset the numeric offset of the following page is used.
func (c *Controller) NextPage(next string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.RequestOffset()
	offset := OffsetFromNext(next)
	if offset == "" {
		n, _ := strconv.Atoi(current)
		offset = strconv.Itoa(n + c.state.Size)
	}
	c.back = append(c.back, current)
	c.state.Page++
	c.state.Offset = offset
	return c.state.Clone()
}

// PreviousPage goes back one page. With an empty back-stack, as after a reload
// on page N, the numeric offset of the previous page is used.
func (c *Controller) PreviousPage() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Page <= 1 {
		return c.state.Clone()
	}
	var offset string
	if n := len(c.back); n > 0 {
		offset = c.back[n-1]
		c.back = c.back[:n-1]
	} else if c.state.Page > 2 {
		offset = strconv.Itoa((c.state.Page - 2) * c.state.Size)
	}
	c.state.Page--
	if c.state.Page == 1 {
		offset = ""
	}
	c.state.Offset = offset
	return c.state.Clone()
}

// SetSearch changes the search text and returns to the first page.
func (c *Controller) SetSearch(search string) State {
	return c.update(func(s *State) { s.Search = search })
}

// SetTags changes the tag filters and returns to the first page.
func (c *Controller) SetTags(tags map[string]string) State {
	return c.update(func(s *State) { s.Tags = tags })
}

// SetSize changes the page size and returns to the first page.
func (c *Controller) SetSize(size int) State {
	return c.update(func(s *State) { s.Size = normalizeSize(size, c.defaultSize) })
}

// SetMesh changes the mesh scope and returns to the first page.
func (c *Controller) SetMesh(mesh string) State {
	return c.update(func(s *State) {
		s.Mesh = mesh
		s.Selected = ""
	})
}

// Select marks id as the selected item. An empty id clears the selection.
func (c *Controller) Select(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Selected = id
	return c.state.Clone()
}

// Navigate replaces the state, as on a URL change. A change of filter resets
// the back-stack; a page change that is a single step is recorded like
// NextPage and PreviousPage would.
func (c *Controller) Navigate(to State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	to = to.Clone()
	to.Page = max(to.Page, 1)
	to.Size = normalizeSize(to.Size, c.defaultSize)
	if to.Page == 1 {
		to.Offset = ""
	}

	switch {
	case !SameFilter(c.state, to):
		c.back = nil
	case to.Page == c.state.Page+1:
		c.back = append(c.back, c.state.RequestOffset())
	case to.Page == c.state.Page-1 && len(c.back) > 0:
		c.back = c.back[:len(c.back)-1]
	case to.Page != c.state.Page:
		c.back = nil
	}
	c.state = to
	return c.state.Clone()
}

func (c *Controller) update(fn func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.Page = 1
	c.state.Offset = ""
	c.back = nil
	return c.state.Clone()
}

// OffsetFromNext extracts the offset parameter of a "next" link.
func OffsetFromNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("offset")
}
