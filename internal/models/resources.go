package models

import "encoding/json"

// Resource represents a generic control-plane resource (mesh, dataplane, policy, etc.).
type Resource map[string]interface{}

// ResourceType describes one browsable collection of the control plane.
type ResourceType struct {
	Name       string   `json:"name"`                  // "dataplanes", "meshtrafficpermissions", etc.
	Label      string   `json:"label"`                 // Human-readable: "Data Plane Proxies"
	Path       string   `json:"path"`                  // "/meshes/{mesh}/dataplanes/_overview"
	ItemPath   string   `json:"item_path,omitempty"`   // "/meshes/{mesh}/dataplanes/{name}/_overview"
	MeshScoped bool     `json:"mesh_scoped"`           // requires a mesh in the route
	GlobalOnly bool     `json:"global_only,omitempty"` // only served by a multizone global
	Policy     bool     `json:"policy,omitempty"`
	MinVersion string   `json:"min_version,omitempty"`
	Gateway    string   `json:"-"`                     // value of the gateway query filter, if any
	Columns    []string `json:"columns"`
	EmptyState string   `json:"empty_state"`
	Aliases    []string `json:"-"`
}

// ResourcePage is one page of a paginated collection as the control plane returns it.
// Total may be zero for cursor-only backends.
type ResourcePage struct {
	Total int        `json:"total"`
	Items []Resource `json:"items"`
	Next  *string    `json:"next"`
}

// HasNext reports whether the server advertised a following page.
func (p *ResourcePage) HasNext() bool {
	return p != nil && p.Next != nil && *p.Next != ""
}

// Len returns the number of items on the page.
func (p *ResourcePage) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// ResourceSummary is the projection of a resource shown in a list row.
type ResourceSummary struct {
	Name     string            `json:"name"`
	Mesh     string            `json:"mesh,omitempty"`
	Type     string            `json:"type"`
	Status   string            `json:"status,omitempty"`
	Reasons  []string          `json:"reasons,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ResourceDetail is the full payload fetched when a row is selected.
type ResourceDetail struct {
	Summary  ResourceSummary          `json:"summary"`
	Resource Resource                 `json:"resource"`
	Related  map[string]RelatedResult `json:"related,omitempty"`
}

// RelatedResult holds the outcome of one secondary lookup for a detail view.
type RelatedResult struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
