package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

// connectionRequest is a connection as clients send it. URL, when set,
// replaces scheme, host, port and path prefix.
type connectionRequest struct {
	models.Connection
	URL string `json:"url,omitempty"`
}

func (req *connectionRequest) toConnection() (*models.Connection, error) {
	conn := req.Connection
	if req.URL != "" {
		if err := conn.SetURL(req.URL); err != nil {
			return nil, err
		}
	} else {
		conn.ApplyDefaults()
	}
	return &conn, nil
}

func decodeConnection(w http.ResponseWriter, r *http.Request) (*models.Connection, bool) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, false
	}
	conn, err := req.toConnection()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if conn.Host == "" {
		writeError(w, http.StatusBadRequest, "host or url is required")
		return nil, false
	}
	return conn, true
}

func (s *Server) CreateConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := decodeConnection(w, r)
	if !ok {
		return
	}
	s.Connections.Create(conn)
	writeJSON(w, http.StatusCreated, conn.Redacted())
}

func (s *Server) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.Connections.List()
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conn.Redacted())
}

func (s *Server) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing := s.Connections.Get(id)
	if existing == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	conn, ok := decodeConnection(w, r)
	if !ok {
		return
	}
	conn.ID = id
	// Masked secrets come back from the UI unchanged; keep the stored ones.
	masked := existing.Redacted()
	if conn.Password == "" || conn.Password == masked.Password {
		conn.Password = existing.Password
	}
	if conn.Token == "" || conn.Token == masked.Token {
		conn.Token = existing.Token
	}
	if !s.Connections.Update(conn) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	s.forget(id)
	writeJSON(w, http.StatusOK, conn.Redacted())
}

func (s *Server) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Connections.Delete(id) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	s.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	err := s.Check(r.Context(), conn)
	if checked := s.Connections.Get(conn.ID); checked != nil {
		conn = checked
	}
	resp := map[string]interface{}{
		"ok":         err == nil,
		"connection": conn.Redacted(),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Check pings the control plane of conn, verifies its credentials and runs
// discovery, recording the outcome on the stored connection.
func (s *Server) Check(ctx context.Context, conn *models.Connection) error {
	log := s.Log.WithValues("connection", conn.Name)
	client := controlplane.NewClient(conn, controlplane.WithTimeout(s.RequestTimeout))
	defer s.forget(conn.ID)

	if err := client.Ping(ctx); err != nil {
		log.Info("ping failed", "error", err.Error())
		s.Connections.SetHealth(conn.ID, "error", err.Error(), "unknown", "")
		return err
	}
	log.V(1).Info("ping ok", "url", client.BaseURL())

	kuma := controlplane.NewKuma(client, conn.Version, conn.IsGlobal())
	if err := kuma.CheckAuth(ctx); err != nil {
		log.Info("auth failed", "error", err.Error())
		s.Connections.SetHealth(conn.ID, "ok", "", "error", err.Error())
		return err
	}

	controlplane.DiscoverAndStore(ctx, client, conn, s.Connections, s.Log)
	s.Connections.SetHealth(conn.ID, "ok", "", "ok", "")
	return nil
}
