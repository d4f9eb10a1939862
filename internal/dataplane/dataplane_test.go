package dataplane

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/mesh-workbench/internal/insight"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

const connected = `{"subscriptions":[{"id":"1","connectTime":"2024-03-01T10:00:00Z","status":{"lastUpdateTime":"2024-03-01T10:05:00Z","total":{"responsesSent":"4","responsesRejected":"1"}},"version":{"kumaDp":{"version":"2.9.1"},"envoy":{"version":"1.30.2"}}}]}`

const disconnected = `{"subscriptions":[{"id":"1","connectTime":"2024-03-01T10:00:00Z","disconnectTime":"2024-03-01T10:30:00Z"}]}`

func overview(t *testing.T, networking, dpInsight string) *Overview {
	t.Helper()
	raw := `{"type":"DataplaneOverview","name":"web-1","mesh":"default","labels":{"kuma.io/zone":"zone-1"},` +
		`"dataplane":{"networking":` + networking + `},"dataplaneInsight":` + dpInsight + `}`
	var res models.Resource
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	ov, err := FromResource(res)
	require.NoError(t, err)
	return ov
}

func TestStatus(t *testing.T) {
	twoInbounds := func(firstReady, secondReady string) string {
		return `{"address":"10.0.0.1","inbound":[` +
			`{"port":8080,"tags":{"kuma.io/service":"web","kuma.io/protocol":"http"},"health":{"ready":` + firstReady + `}},` +
			`{"port":9090,"tags":{"kuma.io/service":"web-admin"},"health":{"ready":` + secondReady + `}}]}`
	}

	tests := []struct {
		name        string
		networking  string
		insight     string
		wantStatus  insight.Status
		wantReasons []string
	}{
		{
			name:       "all ready",
			networking: twoInbounds("true", "true"),
			insight:    connected,
			wantStatus: insight.Online,
		},
		{
			name:        "one unhealthy",
			networking:  twoInbounds("true", "false"),
			insight:     connected,
			wantStatus:  insight.PartiallyDegraded,
			wantReasons: []string{"Inbound on port 9090 is not ready (kuma.io/service: web-admin)"},
		},
		{
			name:       "all unhealthy",
			networking: twoInbounds("false", "false"),
			insight:    connected,
			wantStatus: insight.Offline,
			wantReasons: []string{
				"Inbound on port 8080 is not ready (kuma.io/service: web)",
				"Inbound on port 9090 is not ready (kuma.io/service: web-admin)",
			},
		},
		{
			name:       "disconnected",
			networking: twoInbounds("true", "true"),
			insight:    disconnected,
			wantStatus: insight.Offline,
		},
		{
			name:       "no subscriptions",
			networking: twoInbounds("true", "true"),
			insight:    `{}`,
			wantStatus: insight.Offline,
		},
		{
			name:        "not ready state",
			networking:  `{"inbound":[{"port":80,"tags":{"kuma.io/service":"a"},"state":"NotReady"},{"port":81,"tags":{"kuma.io/service":"b"}}]}`,
			insight:     connected,
			wantStatus:  insight.PartiallyDegraded,
			wantReasons: []string{"Inbound on port 80 is not ready (kuma.io/service: a)"},
		},
		{
			name:       "connected gateway",
			networking: `{"gateway":{"type":"BUILTIN","tags":{"kuma.io/service":"edge"}}}`,
			insight:    connected,
			wantStatus: insight.Online,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ov := overview(t, tc.networking, tc.insight)
			status, reasons := ov.Status()
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantReasons, reasons)
		})
	}
}

func TestGatewayType(t *testing.T) {
	tests := []struct {
		networking string
		want       string
	}{
		{`{"inbound":[{"port":80}]}`, TypeStandard},
		{`{"gateway":{"type":"BUILTIN"}}`, TypeBuiltin},
		{`{"gateway":{"type":"DELEGATED"}}`, TypeDelegated},
		{`{"gateway":{"tags":{"kuma.io/service":"kong"}}}`, TypeDelegated},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, overview(t, tc.networking, `{}`).GatewayType())
		})
	}
}

func TestSummarize(t *testing.T) {
	ov := overview(t, `{"address":"10.0.0.1","inbound":[`+
		`{"port":8080,"tags":{"kuma.io/service":"web","kuma.io/protocol":"http"}},`+
		`{"port":8081,"tags":{"kuma.io/service":"web","kuma.io/protocol":"grpc"}}]}`, connected)

	sum := ov.Summarize()

	assert.Equal(t, "web-1", sum.Name)
	assert.Equal(t, "default", sum.Mesh)
	assert.Equal(t, string(insight.Online), sum.Status)
	assert.Equal(t, "web", sum.Fields["service"])
	assert.Equal(t, "http, grpc", sum.Fields["protocol"])
	assert.Equal(t, "zone-1", sum.Fields["zone"])
	assert.Equal(t, "Online", sum.Fields["status"])
	assert.Equal(t, "STANDARD", sum.Fields["type"])
	assert.Equal(t, "1.30.2", sum.Fields["envoy_version"])
	assert.Equal(t, "2024-03-01T10:05:00Z", sum.Fields["last_updated"])
	assert.Equal(t, "4", sum.Fields["total_updates"])
	assert.Equal(t, "1", sum.Fields["rejected_updates"])
}

func TestZoneProxySummarize(t *testing.T) {
	raw := `{"type":"ZoneIngressOverview","name":"ingress-1",` +
		`"zoneIngress":{"zone":"zone-1","networking":{"address":"10.0.0.5","port":10001,"advertisedAddress":"1.2.3.4","advertisedPort":30001}},` +
		`"zoneIngressInsight":` + connected + `}`
	var res models.Resource
	require.NoError(t, json.Unmarshal([]byte(raw), &res))

	ov, err := ZoneProxyFromResource(res)
	require.NoError(t, err)
	sum := ov.Summarize()

	assert.Equal(t, string(insight.Online), sum.Status)
	assert.Equal(t, "zone-1", sum.Fields["zone"])
	assert.Equal(t, "1.2.3.4:30001", sum.Fields["address"])
	assert.Equal(t, "2024-03-01T10:00:00Z", sum.Fields["last_connected"])
}

func TestZoneSummarize(t *testing.T) {
	raw := `{"type":"ZoneOverview","name":"zone-1","zone":{"enabled":false},"zoneInsight":{"subscriptions":[` +
		`{"id":"1","connectTime":"2024-03-01T10:00:00Z","config":"{\"environment\":\"kubernetes\"}","version":{"kumaCp":{"version":"2.9.1"}}}]}}`
	var res models.Resource
	require.NoError(t, json.Unmarshal([]byte(raw), &res))

	ov, err := ZoneFromResource(res)
	require.NoError(t, err)
	sum := ov.Summarize()

	assert.Equal(t, string(insight.Offline), sum.Status, "disabled zones are offline")
	assert.Equal(t, "kubernetes", sum.Fields["environment"])
	assert.Equal(t, "2.9.1", sum.Fields["zone_version"])
}
