package controlplane

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

// Client is a read-only HTTP client for the Kuma control-plane REST API.
type Client struct {
	baseURL    string
	token      string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client from a Connection.
func NewClient(conn *models.Connection, opts ...Option) *Client {
	transport := cleanhttp.DefaultPooledTransport()
	if conn.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if conn.CACert != "" {
		caCertPool := x509.NewCertPool()
		if caCertPool.AppendCertsFromPEM([]byte(conn.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
		}
	}
	c := &Client{
		baseURL:  conn.BaseURL(),
		token:    conn.Token,
		username: conn.Username,
		password: conn.Password,
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Re-apply credentials on redirects
				if len(via) > 0 {
					authorize(req, conn.Token, conn.Username, conn.Password)
				}
				return nil
			},
		},
	}
	if conn.RateLimit > 0 {
		burst := conn.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conn.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the control-plane API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func authorize(req *http.Request, token, username, password string) {
	switch {
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	case username != "" || password != "":
		req.SetBasicAuth(username, password)
	}
}

// PageRequest selects one page of a collection.
type PageRequest struct {
	Size    int
	Offset  string
	Name    string            // substring match on the resource name
	Tags    map[string]string // dataplane tag filters, sent as tag=key:value
	Gateway string            // "true", "false", "builtin" or "delegated"
}

// Values encodes the request as control-plane query parameters.
func (p PageRequest) Values() url.Values {
	v := url.Values{}
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	if p.Offset != "" && p.Offset != "0" {
		v.Set("offset", p.Offset)
	}
	if p.Name != "" {
		v.Set("name", p.Name)
	}
	if p.Gateway != "" {
		v.Set("gateway", p.Gateway)
	}
	keys := make([]string, 0, len(p.Tags))
	for k := range p.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Add("tag", k+":"+p.Tags[k])
	}
	return v
}

// Get performs an authenticated GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.get(ctx, path, u)
}

func (c *Client) get(ctx context.Context, path, u string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	authorize(req, c.token, c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, newAPIError(http.MethodGet, path, resp.StatusCode, body)
	}
	return body, nil
}

// GetJSON performs an authenticated GET and unmarshals the response into dest.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed == "" || trimmed == "null" {
		return emptyResponse(path)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// ListPage fetches exactly one page of a collection.
func (c *Client) ListPage(ctx context.Context, path string, req PageRequest) (*models.ResourcePage, error) {
	var page models.ResourcePage
	if err := c.GetJSON(ctx, path, req.Values(), &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []models.Resource{}
	}
	return &page, nil
}

// GetAll fetches all pages of a paginated endpoint, returning all items.
func (c *Client) GetAll(ctx context.Context, path string, req PageRequest) ([]models.Resource, error) {
	var all []models.Resource
	currentURL := c.baseURL + path
	if params := req.Values(); len(params) > 0 {
		currentURL += "?" + params.Encode()
	}

	for currentURL != "" {
		body, err := c.get(ctx, path, currentURL)
		if err != nil {
			return nil, err
		}

		var page models.ResourcePage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		all = append(all, page.Items...)

		if page.HasNext() {
			currentURL = *page.Next
			// If relative URL, make absolute
			if currentURL[0] == '/' {
				currentURL = c.baseURL + currentURL
			}
		} else {
			currentURL = ""
		}
	}
	return all, nil
}

// Ping checks connectivity by hitting the API index.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, "/", nil)
	return err
}

// APIError is a non-2xx answer from the control plane.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Title      string
	Details    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Title
	if e.Details != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Details
	}
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// kumaError is the error envelope of the control-plane API. Older releases use
// "details", newer ones follow RFC 7807 with "detail".
type kumaError struct {
	Title   string `json:"title"`
	Details string `json:"details"`
	Detail  string `json:"detail"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, StatusCode: status, Body: truncate(string(body), 200)}
	var ke kumaError
	if json.Unmarshal(body, &ke) == nil {
		e.Title = ke.Title
		e.Details = ke.Details
		if e.Details == "" {
			e.Details = ke.Detail
		}
	}
	return e
}

// emptyResponse is the not-found error for a 2xx answer without a payload.
func emptyResponse(path string) *APIError {
	return &APIError{Method: http.MethodGet, Path: path, StatusCode: http.StatusNotFound, Title: "empty response"}
}

// IsNotFound reports whether err is a 404 from the control plane.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
