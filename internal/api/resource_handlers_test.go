package api

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mesh-workbench/internal/models"
	"github.com/rflorenc/mesh-workbench/internal/view"
)

func TestListResourceTypes(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	resp := e.do(t, http.MethodGet, "/api/connections/"+id+"/resources", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var types []models.ResourceType
	decode(t, resp, &types)

	names := map[string]bool{}
	for _, rt := range types {
		names[rt.Name] = true
	}
	for _, want := range []string{"meshes", "dataplanes", "meshtimeouts"} {
		if !names[want] {
			t.Errorf("resource types missing %q", want)
		}
	}
	if names["zones"] {
		t.Error("zones should only be listed for a global control plane")
	}
}

func TestListPolicyTypes(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	var policies []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/connections/"+id+"/policy-types", nil), &policies)
	if len(policies) != 1 || policies[0].Path != "meshtimeouts" {
		t.Errorf("policies = %+v", policies)
	}
}

func TestGetView(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	resp := e.do(t, http.MethodGet, "/api/connections/"+id+"/views/dataplanes?page=2&selected=web-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var snap view.Snapshot
	decode(t, resp, &snap)

	q := e.kuma.lastListQuery()
	if q.Get("size") != "2" || q.Get("offset") != "2" || q.Get("gateway") != "false" {
		t.Errorf("list query = %v, want size=2 offset=2 gateway=false", q)
	}
	if snap.Route.Mesh != view.DefaultMesh || snap.Route.Page != 2 {
		t.Errorf("route = %+v", snap.Route)
	}
	if len(snap.List.Table.Rows) != 1 || snap.List.Table.Rows[0].ID != "web-3" {
		t.Errorf("rows = %+v, want only web-3", snap.List.Table.Rows)
	}
	if snap.List.Total != 3 || snap.List.HasNext {
		t.Errorf("total=%d hasNext=%v, want 3/false", snap.List.Total, snap.List.HasNext)
	}
	if snap.Detail == nil || snap.Detail.Detail == nil || snap.Detail.Detail.Summary.Name != "web-1" {
		t.Fatalf("detail = %+v, want web-1", snap.Detail)
	}
	if _, ok := snap.Detail.Detail.Related["rules"]; !ok {
		t.Error("detail should carry the rules lookup")
	}
}

func TestGetView_DetailNotFoundKeepsList(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	var snap view.Snapshot
	decode(t, e.do(t, http.MethodGet, "/api/connections/"+id+"/views/dpp?selected=gone", nil), &snap)

	if len(snap.List.Table.Rows) != 2 || snap.List.Error != "" {
		t.Errorf("list = %+v, want two rows and no error", snap.List)
	}
	if snap.Detail == nil || !snap.Detail.NotFound {
		t.Errorf("detail = %+v, want not found", snap.Detail)
	}
}

func TestGetView_SearchFilter(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	e.do(t, http.MethodGet, "/api/connections/"+id+"/views/dataplanes?s=web+service:backend&page=3", nil)

	q := e.kuma.lastListQuery()
	if q.Get("name") != "web" || q.Get("tag") != "kuma.io/service:backend" {
		t.Errorf("list query = %v, want name=web tag=kuma.io/service:backend", q)
	}
}

func TestGetResource(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	resp := e.do(t, http.MethodGet, "/api/connections/"+id+"/meshes/default/dataplanes/web-2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var detail models.ResourceDetail
	decode(t, resp, &detail)
	if detail.Summary.Name != "web-2" || detail.Summary.Fields["service"] != "web" {
		t.Errorf("summary = %+v", detail.Summary)
	}
}

func TestGetResource_YAML(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	resp := e.do(t, http.MethodGet, "/api/connections/"+id+"/meshes/default/dataplanes/web-1?format=yaml", nil)
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q, want application/yaml", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var res map[string]interface{}
	if err := yaml.Unmarshal(body, &res); err != nil {
		t.Fatalf("response is not YAML: %v", err)
	}
	if res["name"] != "web-1" || res["type"] != "DataplaneOverview" {
		t.Errorf("resource = %v", res)
	}
}

func TestGetResource_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown connection", "/api/connections/missing/meshes/default/dataplanes/web-1", http.StatusNotFound},
		{"unknown type", "/meshes/default/nothingatall/web-1", http.StatusNotFound},
		{"missing resource", "/meshes/default/dataplanes/gone", http.StatusNotFound},
		{"mesh scoped without mesh", "/resources/dataplanes/web-1", http.StatusBadRequest},
		{"upstream failure", "/global-insight", http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			id := e.addConnection(t, testToken)
			path := tc.path
			if !strings.HasPrefix(path, "/api/") {
				path = "/api/connections/" + id + path
			}
			resp := e.do(t, http.MethodGet, path, nil)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestGetDataplaneRules(t *testing.T) {
	e := newTestEnv(t)
	id := e.addConnection(t, testToken)

	resp := e.do(t, http.MethodGet, "/api/connections/"+id+"/meshes/default/rules/for/web-1", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != `{"rules":[],"toRules":[]}` {
		t.Errorf("status=%d body=%s", resp.StatusCode, body)
	}
}
