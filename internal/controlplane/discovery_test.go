package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

func TestParseIndexResponse(t *testing.T) {
	body := []byte(`{"hostname":"kuma-cp-0","tagline":"Kuma","version":"2.9.1","instanceId":"kuma-cp-0-1234","clusterId":"abc"}`)
	resp, err := ParseIndexResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Version != "2.9.1" {
		t.Errorf("Version = %q, want %q", resp.Version, "2.9.1")
	}
	if resp.KumaVersion() != "2.9.1" {
		t.Errorf("KumaVersion = %q, want %q", resp.KumaVersion(), "2.9.1")
	}
}

func TestParseIndexResponse_Distribution(t *testing.T) {
	body := []byte(`{"tagline":"Kong Mesh","version":"2.9.0","basedOnKuma":"2.9.1"}`)
	resp, err := ParseIndexResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.KumaVersion() != "2.9.1" {
		t.Errorf("KumaVersion = %q, want %q", resp.KumaVersion(), "2.9.1")
	}
}

func TestParseIndexResponse_Empty(t *testing.T) {
	body := []byte(`{"tagline":"Kuma"}`)
	_, err := ParseIndexResponse(body)
	if err == nil {
		t.Fatal("expected error for missing version, got nil")
	}
}

func TestParseIndexResponse_InvalidJSON(t *testing.T) {
	body := []byte(`not json`)
	_, err := ParseIndexResponse(body)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestParseConfigResponse(t *testing.T) {
	body := []byte(`{"mode":"Global","environment":"Kubernetes","store":{"type":"kubernetes"}}`)
	resp, err := ParseConfigResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != "global" || resp.Environment != "kubernetes" {
		t.Errorf("ParseConfigResponse = (%q, %q), want (global, kubernetes)", resp.Mode, resp.Environment)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"2.9.3", "2.9.4", -1},
		{"2.10.0", "2.9.0", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.1", "1.0", 1},
		{"2", "1.9.9", 1},
		{"2.9.0-rc1", "2.9.0", -1},
		{"dev-8c3f2a1", "2.9.0", 1},
		{"2.9.0", "dev-8c3f2a1", -1},
	}
	for _, tc := range tests {
		t.Run(tc.a+"_vs_"+tc.b, func(t *testing.T) {
			got := CompareVersions(tc.a, tc.b)
			if got != tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"2.9.1", "2.9.0", true},
		{"2.9.0", "2.9.0", true},
		{"2.8.4", "2.9.0", false},
		{"dev-8c3f2a1", "2.9.0", true},
		{"", "1.0.0", true}, // empty version = always true
		{"1.0.0", "", true}, // empty min = always true
		{"", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.version+"_gte_"+tc.min, func(t *testing.T) {
			got := VersionAtLeast(tc.version, tc.min)
			if got != tc.want {
				t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.want)
			}
		})
	}
}

func TestIndex_Integration(t *testing.T) {
	index := map[string]interface{}{
		"hostname": "kuma-cp-0",
		"tagline":  "Kuma",
		"version":  "2.9.1",
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(index)
	}))
	defer ts.Close()

	client := &Client{
		baseURL:    ts.URL,
		httpClient: ts.Client(),
	}

	resp, err := client.Index(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Version != "2.9.1" {
		t.Errorf("Version = %q, want %q", resp.Version, "2.9.1")
	}
}

func TestIndex_Unparseable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`)) // valid JSON but no version
	}))
	defer ts.Close()

	client := &Client{
		baseURL:    ts.URL,
		httpClient: ts.Client(),
	}

	resp, err := client.Index(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Should return empty version, not an error
	if resp.Version != "" {
		t.Errorf("Version = %q, want empty", resp.Version)
	}
}

func TestDiscoverAndStore(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`{"tagline":"Kuma","version":"2.9.1"}`))
		case "/config":
			w.Write([]byte(`{"mode":"global","environment":"universal"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	store := models.NewConnectionStore()
	conn := &models.Connection{Name: "cp"}
	store.Create(conn)

	client := &Client{baseURL: ts.URL, httpClient: ts.Client()}
	DiscoverAndStore(context.Background(), client, conn, store, logr.Discard())

	got := store.Get(conn.ID)
	if got.Version != "2.9.1" || got.Mode != "global" || got.Environment != "universal" || got.Product != "Kuma" {
		t.Errorf("discovered = (%q, %q, %q, %q), want (2.9.1, global, universal, Kuma)",
			got.Version, got.Mode, got.Environment, got.Product)
	}
}

func TestDiscoverAndStore_ConfigFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`{"tagline":"Kuma","version":"2.8.0"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	conn := &models.Connection{Name: "cp"}
	client := &Client{baseURL: ts.URL, httpClient: ts.Client()}
	DiscoverAndStore(context.Background(), client, conn, nil, logr.Discard())

	if conn.Version != "2.8.0" {
		t.Errorf("Version = %q, want 2.8.0", conn.Version)
	}
	if conn.Mode != "" {
		t.Errorf("Mode = %q, want empty when /config fails", conn.Mode)
	}
}

func TestWaitReachable_RetriesUntilUp(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"version":"2.9.1"}`))
	}))
	defer ts.Close()

	client := &Client{baseURL: ts.URL, httpClient: ts.Client()}
	if err := WaitReachable(context.Background(), client, 10*time.Second); err != nil {
		t.Fatalf("WaitReachable returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWaitReachable_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := &Client{baseURL: ts.URL, httpClient: ts.Client()}
	if err := WaitReachable(context.Background(), client, 10*time.Second); err == nil {
		t.Fatal("WaitReachable should fail on 401")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}
