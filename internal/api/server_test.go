package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

const testToken = "ey.good"

// fakeKuma serves the parts of the control-plane API the handlers use.
type fakeKuma struct {
	mu          sync.Mutex
	dataplanes  []string
	listQueries []url.Values
}

func (f *fakeKuma) lastListQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listQueries) == 0 {
		return nil
	}
	return f.listQueries[len(f.listQueries)-1]
}

func kumaError(w http.ResponseWriter, status int, title string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"title":%q,"details":"fake"}`, title)
}

func (f *fakeKuma) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hostname":"cp-0","tagline":"Kuma","version":"2.9.1"}`))
	})
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer "+testToken {
					kumaError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"mode":"Zone","environment":"Universal"}`))
		})
		r.Get("/meshes", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total":1,"items":[{"type":"Mesh","name":"default"}],"next":null}`))
		})
		r.Get("/policies", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"policies":[{"name":"MeshTimeout","path":"meshtimeouts","pluralDisplayName":"Mesh Timeouts","isTargetRefBased":true}]}`))
		})
		r.Get("/global-insight", func(w http.ResponseWriter, r *http.Request) {
			kumaError(w, http.StatusInternalServerError, "Internal Server Error")
		})
		r.Get("/meshes/{mesh}/dataplanes/_overview", f.listDataplanes)
		r.Get("/meshes/{mesh}/dataplanes/{name}/_overview", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			if !f.has(name) {
				kumaError(w, http.StatusNotFound, "Could not retrieve a resource")
				return
			}
			w.Write([]byte(dataplaneJSON(name)))
		})
		r.Get("/meshes/{mesh}/dataplanes/{name}/_rules", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"rules":[],"toRules":[]}`))
		})
	})
	return r
}

func (f *fakeKuma) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.dataplanes {
		if n == name {
			return true
		}
	}
	return false
}

// listDataplanes pages through f.dataplanes honouring size and offset.
func (f *fakeKuma) listDataplanes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.listQueries = append(f.listQueries, q)
	names := append([]string(nil), f.dataplanes...)
	f.mu.Unlock()

	size, _ := strconv.Atoi(q.Get("size"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if size <= 0 {
		size = 100
	}
	end := min(offset+size, len(names))
	items := make([]string, 0, size)
	for _, n := range names[min(offset, end):end] {
		items = append(items, dataplaneJSON(n))
	}
	fmt.Fprintf(w, `{"total":%d,"items":[%s],"next":null}`, len(names), strings.Join(items, ","))
}

func dataplaneJSON(name string) string {
	return fmt.Sprintf(`{"type":"DataplaneOverview","mesh":"default","name":%q,`+
		`"dataplane":{"networking":{"address":"10.0.0.1","inbound":[{"port":80,"tags":{"kuma.io/service":"web"}}]}},`+
		`"dataplaneInsight":{}}`, name)
}

type testEnv struct {
	kuma   *fakeKuma
	cp     *httptest.Server
	api    *httptest.Server
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	f := &fakeKuma{dataplanes: []string{"web-1", "web-2", "web-3"}}
	cp := httptest.NewServer(f.handler())
	t.Cleanup(cp.Close)

	s := &Server{
		Connections:     models.NewConnectionStore(),
		Log:             logr.Discard(),
		PageSize:        2,
		RefreshInterval: time.Hour,
		RequestTimeout:  5 * time.Second,
	}
	api := httptest.NewServer(NewRouter(s))
	t.Cleanup(api.Close)
	return &testEnv{kuma: f, cp: cp, api: api, server: s}
}

// addConnection stores a connection to the fake control plane and returns its ID.
func (e *testEnv) addConnection(t *testing.T, token string) string {
	t.Helper()
	conn := &models.Connection{Name: "local", Token: token}
	if err := conn.SetURL(e.cp.URL); err != nil {
		t.Fatal(err)
	}
	e.server.Connections.Create(conn)
	return conn.ID
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.api.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.api.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodOptions, "/api/connections", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
