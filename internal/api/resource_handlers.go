package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mesh-workbench/internal/route"
	"github.com/rflorenc/mesh-workbench/internal/view"
)

func (s *Server) ListResourceTypes(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	types, err := s.controlPlane(conn).GetResourceTypes(r.Context())
	if err != nil {
		if len(types) == 0 {
			writeUpstreamError(w, err)
			return
		}
		// Built-in types stay browsable when the policy list is unavailable.
		s.Log.Info("partial resource type list", "connection", conn.Name, "error", err.Error())
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) ListPolicyTypes(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	policies, err := s.controlPlane(conn).PolicyTypes(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (s *Server) GetGlobalInsight(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	insight, err := s.controlPlane(conn).GlobalInsight(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// GetView loads the list, and the detail when ?selected is set, for the route
// in the query string. List and detail failures are part of the snapshot.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	cp := s.controlPlane(conn)
	rt, ok := s.resourceType(w, r, cp)
	if !ok {
		return
	}
	state := route.Parse(r.URL.Query(), s.PageSize)
	coll := view.NewCollection(cp, rt, state,
		view.WithLogger(s.Log.WithValues("connection", conn.Name)),
		view.WithDefaultSize(s.PageSize),
	)
	writeJSON(w, http.StatusOK, coll.Load(r.Context()))
}

// GetResource returns one resource with its summary and related lookups, or
// the bare resource as YAML with ?format=yaml.
func (s *Server) GetResource(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	cp := s.controlPlane(conn)
	rt, ok := s.resourceType(w, r, cp)
	if !ok {
		return
	}
	mesh := chi.URLParam(r, "mesh")
	if !rt.MeshScoped {
		mesh = ""
	} else if mesh == "" {
		writeError(w, http.StatusBadRequest, rt.Name+" are mesh scoped, use /meshes/{mesh}/"+rt.Name+"/{name}")
		return
	}

	detail, err := view.Detail(r.Context(), cp, rt, view.DetailParams{Mesh: mesh, Name: chi.URLParam(r, "name")})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		out, err := yaml.Marshal(detail.Resource)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) GetDataplaneRules(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	rules, err := s.controlPlane(conn).DataplaneRules(r.Context(), chi.URLParam(r, "mesh"), chi.URLParam(r, "dataplane"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rules)
}
