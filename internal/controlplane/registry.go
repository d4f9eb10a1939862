package controlplane

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

var (
	ErrUnknownType   = errors.New("unknown resource type")
	ErrAmbiguousType = errors.New("ambiguous resource type")
)

// Kuma resource types (registry). Policies are added at runtime from GET /policies.
var kumaResources = []models.ResourceType{
	{Name: "meshes", Label: "Meshes", Path: "/meshes", ItemPath: "/meshes/{name}",
		Columns:    []string{"name", "mtls", "metrics", "created"},
		EmptyState: "There are no meshes present.",
		Aliases:    []string{"mesh"}},
	{Name: "dataplanes", Label: "Data Plane Proxies", MeshScoped: true, Gateway: "false",
		Path:       "/meshes/{mesh}/dataplanes/_overview",
		ItemPath:   "/meshes/{mesh}/dataplanes/{name}/_overview",
		Columns:    []string{"name", "service", "protocol", "zone", "status", "last_updated", "envoy_version"},
		EmptyState: "There are no data plane proxies present.",
		Aliases:    []string{"dataplane", "dp", "dpp", "proxies"}},
	{Name: "gateways", Label: "Gateways", MeshScoped: true, Gateway: "true",
		Path:       "/meshes/{mesh}/dataplanes/_overview",
		ItemPath:   "/meshes/{mesh}/dataplanes/{name}/_overview",
		Columns:    []string{"name", "type", "service", "zone", "status", "last_updated"},
		EmptyState: "There are no gateways present.",
		Aliases:    []string{"gateway", "gw"}},
	{Name: "builtin-gateways", Label: "Built-in Gateways", MeshScoped: true, Gateway: "builtin",
		Path:       "/meshes/{mesh}/dataplanes/_overview",
		ItemPath:   "/meshes/{mesh}/dataplanes/{name}/_overview",
		Columns:    []string{"name", "service", "zone", "status", "last_updated"},
		EmptyState: "There are no built-in gateways present."},
	{Name: "delegated-gateways", Label: "Delegated Gateways", MeshScoped: true, Gateway: "delegated",
		Path:       "/meshes/{mesh}/dataplanes/_overview",
		ItemPath:   "/meshes/{mesh}/dataplanes/{name}/_overview",
		Columns:    []string{"name", "service", "zone", "status", "last_updated"},
		EmptyState: "There are no delegated gateways present."},
	{Name: "services", Label: "Services", MeshScoped: true,
		Path:       "/meshes/{mesh}/service-insights",
		ItemPath:   "/meshes/{mesh}/service-insights/{name}",
		Columns:    []string{"name", "service_type", "address", "status", "dataplanes"},
		EmptyState: "There are no services present.",
		Aliases:    []string{"service", "svc", "service-insights"}},
	{Name: "meshservices", Label: "Mesh Services", MeshScoped: true, MinVersion: "2.9.0",
		Path:       "/meshes/{mesh}/meshservices",
		ItemPath:   "/meshes/{mesh}/meshservices/{name}",
		Columns:    []string{"name", "zone", "state", "created"},
		EmptyState: "There are no mesh services present.",
		Aliases:    []string{"meshservice", "ms"}},
	{Name: "meshgateways", Label: "Mesh Gateways", MeshScoped: true,
		Path:       "/meshes/{mesh}/meshgateways",
		ItemPath:   "/meshes/{mesh}/meshgateways/{name}",
		Columns:    []string{"name", "created", "modified"},
		EmptyState: "There are no mesh gateways present.",
		Aliases:    []string{"meshgateway"}},
	{Name: "external-services", Label: "External Services", MeshScoped: true,
		Path:       "/meshes/{mesh}/external-services",
		ItemPath:   "/meshes/{mesh}/external-services/{name}",
		Columns:    []string{"name", "address", "created"},
		EmptyState: "There are no external services present.",
		Aliases:    []string{"externalservices", "es"}},
	{Name: "zones", Label: "Zone Control Planes", GlobalOnly: true,
		Path:       "/zones/_overview",
		ItemPath:   "/zones/{name}/_overview",
		Columns:    []string{"name", "zone_version", "environment", "status", "last_connected"},
		EmptyState: "There are no zones present.",
		Aliases:    []string{"zone"}},
	{Name: "zoneingresses", Label: "Zone Ingresses",
		Path:       "/zoneingresses/_overview",
		ItemPath:   "/zoneingresses/{name}/_overview",
		Columns:    []string{"name", "zone", "address", "status", "last_connected"},
		EmptyState: "There are no zone ingresses present.",
		Aliases:    []string{"zone-ingresses", "zoneingress", "ingresses"}},
	{Name: "zoneegresses", Label: "Zone Egresses",
		Path:       "/zoneegresses/_overview",
		ItemPath:   "/zoneegresses/{name}/_overview",
		Columns:    []string{"name", "zone", "address", "status", "last_connected"},
		EmptyState: "There are no zone egresses present.",
		Aliases:    []string{"zone-egresses", "zoneegress", "egresses"}},
}

// PolicyType is one entry of GET /policies.
type PolicyType struct {
	Name                string `json:"name"`
	Path                string `json:"path"`
	ReadOnly            bool   `json:"readOnly"`
	SingularDisplayName string `json:"singularDisplayName"`
	PluralDisplayName   string `json:"pluralDisplayName"`
	IsExperimental      bool   `json:"isExperimental"`
	IsTargetRefBased    bool   `json:"isTargetRefBased"`
}

// policyTypesResponse is the GET /policies envelope.
type policyTypesResponse struct {
	Policies []PolicyType `json:"policies"`
}

// ResourceType converts a policy type into a browsable collection.
func (p PolicyType) ResourceType() models.ResourceType {
	label := p.PluralDisplayName
	if label == "" {
		label = p.Name
	}
	columns := []string{"name", "type", "created"}
	if p.IsTargetRefBased {
		columns = []string{"name", "target_ref", "namespace", "zone", "created"}
	}
	return models.ResourceType{
		Name:       p.Path,
		Label:      label,
		Path:       "/meshes/{mesh}/" + p.Path,
		ItemPath:   "/meshes/{mesh}/" + p.Path + "/{name}",
		MeshScoped: true,
		Policy:     true,
		Columns:    columns,
		EmptyState: fmt.Sprintf("There are no %s present.", label),
		Aliases:    []string{strings.ToLower(p.Name)},
	}
}

// ExpandPath fills {mesh} and {name} placeholders of a registry path.
func ExpandPath(tmpl, mesh, name string) string {
	r := strings.NewReplacer(
		"{mesh}", url.PathEscape(mesh),
		"{name}", url.PathEscape(name),
	)
	return r.Replace(tmpl)
}

// filterTypes returns the types a control plane of the given version and mode serves.
func filterTypes(registry []models.ResourceType, version string, global bool) []models.ResourceType {
	filtered := make([]models.ResourceType, 0, len(registry))
	for _, r := range registry {
		if r.GlobalOnly && !global {
			continue
		}
		if !VersionAtLeast(version, r.MinVersion) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// findType resolves name against types by exact name, then alias, then fuzzy match.
func findType(types []models.ResourceType, name string) (models.ResourceType, error) {
	if rt, ok := findExact(types, name); ok {
		return rt, nil
	}
	return findFuzzy(types, name)
}

func findExact(types []models.ResourceType, name string) (models.ResourceType, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, rt := range types {
		if rt.Name == key {
			return rt, true
		}
	}
	for _, rt := range types {
		for _, alias := range rt.Aliases {
			if alias == key {
				return rt, true
			}
		}
	}
	return models.ResourceType{}, false
}

func findFuzzy(types []models.ResourceType, name string) (models.ResourceType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	names := make([]string, len(types))
	for i, rt := range types {
		names[i] = rt.Name
	}
	matches := fuzzy.Find(key, names)
	if len(matches) == 1 || (len(matches) > 1 && matches[0].Score > matches[1].Score) {
		return types[matches[0].Index], nil
	}
	if len(matches) > 1 {
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Str)
		}
		sort.Strings(candidates)
		return models.ResourceType{}, fmt.Errorf("%w %q: could be %s", ErrAmbiguousType, name, strings.Join(candidates, ", "))
	}
	return models.ResourceType{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
}
