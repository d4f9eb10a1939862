package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

// Server holds shared state for all API handlers.
type Server struct {
	Connections     *models.ConnectionStore
	Log             logr.Logger
	PageSize        int
	RefreshInterval time.Duration
	RequestTimeout  time.Duration

	// NewControlPlane builds the control plane of a connection. Defaults to
	// controlplane.New with RequestTimeout.
	NewControlPlane func(conn *models.Connection) controlplane.ControlPlane

	mu     sync.Mutex
	planes map[string]controlplane.ControlPlane // by connection ID
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Connections
		r.Post("/connections", s.CreateConnection)
		r.Get("/connections", s.ListConnections)
		r.Get("/connections/{id}", s.GetConnection)
		r.Put("/connections/{id}", s.UpdateConnection)
		r.Delete("/connections/{id}", s.DeleteConnection)
		r.Post("/connections/{id}/test", s.TestConnection)

		// Resource browsing
		r.Get("/connections/{id}/resources", s.ListResourceTypes)
		r.Get("/connections/{id}/resources/{type}/{name}", s.GetResource)
		r.Get("/connections/{id}/policy-types", s.ListPolicyTypes)
		r.Get("/connections/{id}/global-insight", s.GetGlobalInsight)
		r.Get("/connections/{id}/views/{type}", s.GetView)
		r.Get("/connections/{id}/meshes/{mesh}/rules/for/{dataplane}", s.GetDataplaneRules)
		r.Get("/connections/{id}/meshes/{mesh}/{type}/{name}", s.GetResource)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/connections/{id}/views/{type}", s.StreamView)

	return r
}

// controlPlane returns the cached control plane of conn, creating it on first use.
// The cache keeps the policy type list and rate limiter alive across requests.
func (s *Server) controlPlane(conn *models.Connection) controlplane.ControlPlane {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.planes[conn.ID]; ok {
		return cp
	}
	if s.planes == nil {
		s.planes = make(map[string]controlplane.ControlPlane)
	}
	var cp controlplane.ControlPlane
	if s.NewControlPlane != nil {
		cp = s.NewControlPlane(conn)
	} else {
		cp = controlplane.New(conn, controlplane.WithTimeout(s.RequestTimeout))
	}
	s.planes[conn.ID] = cp
	return cp
}

// forget drops the cached control plane of a connection after it changed.
func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.planes, id)
}

func requestLogger(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start).String(),
					"request_id", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
