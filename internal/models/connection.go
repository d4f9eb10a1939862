package models

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection represents a user-configured Kuma control plane.
type Connection struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Scheme     string  `json:"scheme"` // "http" or "https"
	Host       string  `json:"host"`
	Port       int     `json:"port"`
	PathPrefix string  `json:"path_prefix,omitempty"` // e.g. "/api" when the API sits behind a gateway
	Token      string  `json:"token,omitempty"`       // Kuma user token, sent as a bearer token
	Username   string  `json:"username,omitempty"`
	Password   string  `json:"password,omitempty"`
	Insecure   bool    `json:"insecure"` // skip TLS verification
	CACert     string  `json:"ca_cert,omitempty"`
	RateLimit  float64 `json:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	RateBurst  int     `json:"rate_burst,omitempty"`

	// Discovered from the control plane.
	Version     string `json:"version,omitempty"`
	Product     string `json:"product,omitempty"` // index tagline, "Kuma" unless a distribution
	Mode        string `json:"mode,omitempty"`    // "global", "zone" or "standalone"
	Environment string `json:"environment,omitempty"`

	PingStatus  string     `json:"ping_status"` // "unknown", "ok", "error"
	PingError   string     `json:"ping_error,omitempty"`
	AuthStatus  string     `json:"auth_status"`
	AuthError   string     `json:"auth_error,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// BaseURL returns the full base URL for this connection.
func (c *Connection) BaseURL() string {
	prefix := strings.TrimSuffix(c.PathPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return fmt.Sprintf("%s://%s:%d%s", c.Scheme, c.Host, c.Port, prefix)
}

// MaskedPassword returns a fixed-width mask when a password is set.
func (c *Connection) MaskedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "••••••••"
}

// IsGlobal reports whether the control plane runs as a multizone global.
func (c *Connection) IsGlobal() bool {
	return c.Mode == "global"
}

// Redacted returns a copy safe to hand to API clients.
func (c *Connection) Redacted() Connection {
	out := *c
	out.Password = c.MaskedPassword()
	if out.Token != "" {
		out.Token = "••••••••"
	}
	return out
}

// ApplyDefaults fills scheme and port the way the control plane ships by default.
func (c *Connection) ApplyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.Port == 0 {
		switch c.Scheme {
		case "https":
			c.Port = 5682
		default:
			c.Port = 5681
		}
	}
	if c.Name == "" {
		c.Name = c.Host
	}
}

// SetURL fills scheme, host, port and path prefix from a control-plane URL
// such as "https://kuma-cp.example.com:5682/api".
func (c *Connection) SetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing control plane URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("control plane URL %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("control plane URL %q: missing host", raw)
	}
	c.Scheme = u.Scheme
	c.Host = u.Hostname()
	c.Port = 0
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("control plane URL %q: invalid port", raw)
		}
		c.Port = port
	}
	c.PathPrefix = strings.TrimSuffix(u.Path, "/")
	c.ApplyDefaults()
	return nil
}

// ConnectionStore is an in-memory thread-safe store for connections. It keeps
// its own copies: Get and List hand out snapshots, and stored connections only
// change through the store's methods.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionStore creates an empty connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Connection)}
}

// Create adds a new connection, assigning it a UUID.
func (s *ConnectionStore) Create(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	c.PingStatus = "unknown"
	c.AuthStatus = "unknown"
	stored := *c
	s.conns[c.ID] = &stored
}

// Get returns a copy of a connection by ID, or nil if not found.
func (s *ConnectionStore) Get(id string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return nil
	}
	out := *c
	return &out
}

// List returns all connections ordered by name.
func (s *ConnectionStore) List() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out := *c
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Update replaces an existing connection's settings.
func (s *ConnectionStore) Update(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c.ID]; !ok {
		return false
	}
	stored := *c
	s.conns[c.ID] = &stored
	return true
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}

// SetHealth records the outcome of the last reachability and auth checks.
func (s *ConnectionStore) SetHealth(id, pingStatus, pingError, authStatus, authError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	now := time.Now()
	c.PingStatus = pingStatus
	c.PingError = pingError
	c.AuthStatus = authStatus
	c.AuthError = authError
	c.LastChecked = &now
}

// SetDiscovery records what discovery learned about the control plane.
// Empty values leave the stored field untouched.
func (s *ConnectionStore) SetDiscovery(id string, info Discovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	if info.Version != "" {
		c.Version = info.Version
	}
	if info.Product != "" {
		c.Product = info.Product
	}
	if info.Mode != "" {
		c.Mode = info.Mode
	}
	if info.Environment != "" {
		c.Environment = info.Environment
	}
}

// Discovery is the subset of control-plane metadata kept on a Connection.
type Discovery struct {
	Version     string
	Product     string
	Mode        string
	Environment string
}
