package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

// IndexResponse holds the parsed API index (GET /).
type IndexResponse struct {
	Hostname    string `json:"hostname"`
	Tagline     string `json:"tagline"`
	Product     string `json:"product"`
	Version     string `json:"version"`
	BasedOnKuma string `json:"basedOnKuma"`
	InstanceID  string `json:"instanceId"`
	ClusterID   string `json:"clusterId"`
}

// ConfigResponse holds the fields of GET /config the workbench cares about.
type ConfigResponse struct {
	Mode        string `json:"mode"`
	Environment string `json:"environment"`
}

// ParseIndexResponse extracts the version from an API index response body.
func ParseIndexResponse(body []byte) (*IndexResponse, error) {
	var resp IndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing index response: %w", err)
	}
	if resp.Version == "" {
		return nil, fmt.Errorf("index response missing version field")
	}
	return &resp, nil
}

// ParseConfigResponse parses the GET /config response body.
func ParseConfigResponse(body []byte) (*ConfigResponse, error) {
	var resp ConfigResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing config response: %w", err)
	}
	resp.Mode = strings.ToLower(resp.Mode)
	resp.Environment = strings.ToLower(resp.Environment)
	return &resp, nil
}

// KumaVersion returns the upstream Kuma version, which differs from Version for
// distributions that set basedOnKuma.
func (r *IndexResponse) KumaVersion() string {
	if r.BasedOnKuma != "" {
		return r.BasedOnKuma
	}
	return r.Version
}

// CompareVersions compares two control-plane versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
// Handles partial versions (e.g. "2.9" vs "2.9.0"). Unparseable versions sort last,
// development builds report versions such as "dev-8c3f2a1".
func CompareVersions(a, b string) int {
	av, aErr := semver.NewVersion(a)
	bv, bErr := semver.NewVersion(b)
	switch {
	case aErr != nil && bErr != nil:
		return strings.Compare(a, b)
	case aErr != nil:
		return 1
	case bErr != nil:
		return -1
	}
	return av.Compare(bv)
}

// VersionAtLeast returns true if version >= min.
func VersionAtLeast(version, min string) bool {
	if version == "" || min == "" {
		return true
	}
	return CompareVersions(version, min) >= 0
}

// Index calls the API index and parses the version from the response. If the
// response can't be parsed but HTTP succeeded, returns an empty IndexResponse
// (connectivity OK, version unknown).
func (c *Client) Index(ctx context.Context) (*IndexResponse, error) {
	body, err := c.Get(ctx, "/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := ParseIndexResponse(body)
	if err != nil {
		return &IndexResponse{}, nil
	}
	return resp, nil
}

// WaitReachable pings the control plane with exponential backoff until it
// answers or maxElapsed passes.
func WaitReachable(ctx context.Context, client *Client, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		err := client.Ping(ctx)
		if err != nil && StatusCode(err) >= 400 && StatusCode(err) < 500 {
			// The server is up and answering; retrying won't change a 4xx.
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// DiscoverAndStore orchestrates API discovery for a connection.
// It reads the API index for the version and /config for the deployment mode,
// then stores the result on the connection.
// All discovery is best-effort: failures are logged but do not produce errors.
func DiscoverAndStore(ctx context.Context, client *Client, conn *models.Connection, store *models.ConnectionStore, log logr.Logger) {
	log = log.WithValues("connection", conn.Name)

	var info models.Discovery
	index, err := client.Index(ctx)
	if err != nil {
		log.Info("discovery: index failed", "error", err.Error())
		return
	}
	info.Version = index.KumaVersion()
	info.Product = index.Tagline

	body, err := client.Get(ctx, "/config", nil)
	if err != nil {
		log.Info("discovery: /config failed", "error", err.Error())
	} else if cfg, err := ParseConfigResponse(body); err != nil {
		log.Info("discovery: parse /config failed", "error", err.Error())
	} else {
		info.Mode = cfg.Mode
		info.Environment = cfg.Environment
	}

	if store != nil {
		store.SetDiscovery(conn.ID, info)
	} else {
		applyDiscovery(conn, info)
	}
	log.Info("discovery complete", "version", info.Version, "mode", info.Mode, "environment", info.Environment)
}

// applyDiscovery updates a connection that is not held by a store.
func applyDiscovery(conn *models.Connection, info models.Discovery) {
	if info.Version != "" {
		conn.Version = info.Version
	}
	if info.Product != "" {
		conn.Product = info.Product
	}
	if info.Mode != "" {
		conn.Mode = info.Mode
	}
	if info.Environment != "" {
		conn.Environment = info.Environment
	}
}
