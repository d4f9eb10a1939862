package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

// ControlPlane defines the read operations the workbench needs from a control plane.
type ControlPlane interface {
	// Ping tests connectivity (unauthenticated). Returns nil if reachable.
	Ping(ctx context.Context) error

	// CheckAuth verifies credentials. Returns nil if authenticated.
	CheckAuth(ctx context.Context) error

	// GetResourceTypes returns all browsable resource types for this control plane.
	GetResourceTypes(ctx context.Context) ([]models.ResourceType, error)

	// ResolveType finds a resource type by name, alias or fuzzy match.
	ResolveType(ctx context.Context, name string) (models.ResourceType, error)

	// ListPage returns one page of a resource collection.
	ListPage(ctx context.Context, rt models.ResourceType, mesh string, req PageRequest) (*models.ResourcePage, error)

	// GetResource returns a single resource.
	GetResource(ctx context.Context, rt models.ResourceType, mesh, name string) (models.Resource, error)

	// Related runs the secondary lookups of a resource type.
	Related(ctx context.Context, rt models.ResourceType, mesh, name string) map[string]models.RelatedResult

	// PolicyTypes returns the policy types the control plane serves.
	PolicyTypes(ctx context.Context) ([]PolicyType, error)

	// GlobalInsight returns the control-plane wide resource counters.
	GlobalInsight(ctx context.Context) (models.Resource, error)

	// DataplaneRules returns the policy rules that apply to a dataplane.
	DataplaneRules(ctx context.Context, mesh, name string) (json.RawMessage, error)
}

// Kuma implements ControlPlane for the Kuma REST API.
type Kuma struct {
	client  *Client
	version string // detected control-plane version
	global  bool

	mu       sync.Mutex
	policies []PolicyType // cached after the first successful GET /policies
}

// New creates the ControlPlane for a connection.
func New(conn *models.Connection, opts ...Option) *Kuma {
	return NewKuma(NewClient(conn, opts...), conn.Version, conn.IsGlobal())
}

// NewKuma creates a Kuma control plane on top of an existing client.
func NewKuma(client *Client, version string, global bool) *Kuma {
	return &Kuma{client: client, version: version, global: global}
}

// Client returns the underlying HTTP client.
func (k *Kuma) Client() *Client {
	return k.client
}

func (k *Kuma) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *Kuma) CheckAuth(ctx context.Context) error {
	// The index is public; listing meshes needs a valid identity.
	_, err := k.client.Get(ctx, "/meshes", PageRequest{Size: 1}.Values())
	return err
}

func (k *Kuma) PolicyTypes(ctx context.Context) ([]PolicyType, error) {
	k.mu.Lock()
	cached := k.policies
	k.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var resp policyTypesResponse
	if err := k.client.GetJSON(ctx, "/policies", nil, &resp); err != nil {
		return nil, err
	}
	sort.Slice(resp.Policies, func(i, j int) bool {
		return resp.Policies[i].Name < resp.Policies[j].Name
	})
	if resp.Policies == nil {
		resp.Policies = []PolicyType{}
	}

	k.mu.Lock()
	k.policies = resp.Policies
	k.mu.Unlock()
	return resp.Policies, nil
}

func (k *Kuma) GetResourceTypes(ctx context.Context) ([]models.ResourceType, error) {
	registry := filterTypes(kumaResources, k.version, k.global)
	policies, err := k.PolicyTypes(ctx)
	if err != nil {
		// Static types are still browsable without the policy list.
		return registry, fmt.Errorf("listing policy types: %w", err)
	}
	for _, p := range policies {
		registry = append(registry, p.ResourceType())
	}
	return registry, nil
}

func (k *Kuma) ResolveType(ctx context.Context, name string) (models.ResourceType, error) {
	if rt, ok := findExact(filterTypes(kumaResources, k.version, k.global), name); ok {
		return rt, nil
	}
	types, err := k.GetResourceTypes(ctx)
	if err != nil && len(types) == 0 {
		return models.ResourceType{}, err
	}
	return findType(types, name)
}

func (k *Kuma) ListPage(ctx context.Context, rt models.ResourceType, mesh string, req PageRequest) (*models.ResourcePage, error) {
	if rt.MeshScoped && mesh == "" {
		return nil, fmt.Errorf("%s: a mesh is required", rt.Name)
	}
	if req.Gateway == "" {
		req.Gateway = rt.Gateway
	}
	return k.client.ListPage(ctx, ExpandPath(rt.Path, mesh, ""), req)
}

func (k *Kuma) GetResource(ctx context.Context, rt models.ResourceType, mesh, name string) (models.Resource, error) {
	if rt.MeshScoped && mesh == "" {
		return nil, fmt.Errorf("%s: a mesh is required", rt.Name)
	}
	path := ExpandPath(rt.ItemPath, mesh, name)
	var res models.Resource
	if err := k.client.GetJSON(ctx, path, nil, &res); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, emptyResponse(path)
	}
	return res, nil
}

// relatedPaths lists the secondary lookups per resource kind.
func relatedPaths(rt models.ResourceType) map[string]string {
	switch {
	case rt.Policy:
		return map[string]string{"dataplanes": "/meshes/{mesh}/" + rt.Name + "/{name}/_resources/dataplanes"}
	case rt.Gateway != "":
		return map[string]string{"rules": "/meshes/{mesh}/dataplanes/{name}/_rules"}
	case rt.Name == "meshes":
		return map[string]string{"insight": "/mesh-insights/{name}"}
	}
	return nil
}

func (k *Kuma) Related(ctx context.Context, rt models.ResourceType, mesh, name string) map[string]models.RelatedResult {
	paths := relatedPaths(rt)
	if len(paths) == 0 {
		return nil
	}
	if rt.Name == "meshes" {
		mesh = name
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]models.RelatedResult, len(paths))
	)
	for key, tmpl := range paths {
		wg.Add(1)
		go func(key, path string) {
			defer wg.Done()
			var result models.RelatedResult
			body, err := k.client.Get(ctx, path, nil)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Data = json.RawMessage(body)
			}
			mu.Lock()
			out[key] = result
			mu.Unlock()
		}(key, ExpandPath(tmpl, mesh, name))
	}
	wg.Wait()
	return out
}

func (k *Kuma) GlobalInsight(ctx context.Context) (models.Resource, error) {
	var res models.Resource
	if err := k.client.GetJSON(ctx, "/global-insight", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (k *Kuma) DataplaneRules(ctx context.Context, mesh, name string) (json.RawMessage, error) {
	body, err := k.client.Get(ctx, ExpandPath("/meshes/{mesh}/dataplanes/{name}/_rules", mesh, name), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}
