package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError answers with the status mapped from a control-plane error.
func writeUpstreamError(w http.ResponseWriter, err error) {
	writeError(w, upstreamStatus(err), err.Error())
}

// upstreamStatus maps a control-plane error to the status the API answers with.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, controlplane.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, controlplane.ErrAmbiguousType):
		return http.StatusBadRequest
	case controlplane.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// connection looks up the {id} connection, answering 404 when it is missing.
func (s *Server) connection(w http.ResponseWriter, r *http.Request) (*models.Connection, bool) {
	conn := s.Connections.Get(chi.URLParam(r, "id"))
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return nil, false
	}
	return conn, true
}

// resourceType resolves the {type} parameter against the control plane of conn.
func (s *Server) resourceType(w http.ResponseWriter, r *http.Request, cp controlplane.ControlPlane) (models.ResourceType, bool) {
	rt, err := cp.ResolveType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeUpstreamError(w, err)
		return models.ResourceType{}, false
	}
	return rt, true
}
