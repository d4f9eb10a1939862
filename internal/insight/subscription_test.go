package insight

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriptionsJSON = `[
  {
    "id": "a",
    "controlPlaneInstanceId": "cp-0",
    "connectTime": "2024-03-01T10:00:00Z",
    "disconnectTime": "2024-03-01T11:00:00Z",
    "status": {
      "lastUpdateTime": "2024-03-01T10:30:00Z",
      "total": {"responsesSent": "10", "responsesAcknowledged": "9", "responsesRejected": "1"}
    },
    "version": {"kumaDp": {"version": "2.8.0"}, "envoy": {"version": "1.29.0"}}
  },
  {
    "id": "b",
    "controlPlaneInstanceId": "cp-1",
    "connectTime": "2024-03-01T11:00:05Z",
    "status": {
      "lastUpdateTime": "2024-03-01T11:05:00Z",
      "total": {"responsesSent": 5, "responsesRejected": 0}
    },
    "version": {"kumaDp": {"version": "2.9.1", "kumaCpCompatible": false}, "envoy": {"version": "1.30.2", "kumaDpCompatible": true}}
  }
]`

func decodeSubscriptions(t *testing.T, raw string) []Subscription {
	t.Helper()
	var subs []Subscription
	require.NoError(t, json.Unmarshal([]byte(raw), &subs))
	return subs
}

func TestSummarize(t *testing.T) {
	subs := decodeSubscriptions(t, subscriptionsJSON)

	sum := Summarize(subs)

	assert.True(t, sum.Connected)
	assert.Equal(t, uint64(15), sum.TotalUpdates)
	assert.Equal(t, uint64(1), sum.TotalRejected)
	assert.Equal(t, "2.9.1", sum.DpVersion)
	assert.Equal(t, "1.30.2", sum.EnvoyVersion)
	require.NotNil(t, sum.LastConnected)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 5, 0, time.UTC), sum.LastConnected.UTC())
	require.NotNil(t, sum.LastUpdated)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 5, 0, 0, time.UTC), sum.LastUpdated.UTC())
	assert.Equal(t, []string{WarningDpCpIncompatible}, sum.Warnings)
	require.NotNil(t, sum.Latest)
	assert.Equal(t, "b", sum.Latest.ID)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.False(t, sum.Connected)
	assert.Nil(t, sum.LastConnected)
	assert.Nil(t, sum.Latest)
	assert.Empty(t, sum.Warnings)
}

func TestConnectionStatus(t *testing.T) {
	subs := decodeSubscriptions(t, subscriptionsJSON)
	assert.Equal(t, Online, ConnectionStatus(subs))
	assert.Equal(t, Offline, ConnectionStatus(subs[:1]))
	assert.Equal(t, Offline, ConnectionStatus(nil))

	// An open subscription counts even when a later one has closed.
	reordered := []Subscription{subs[1], subs[0]}
	assert.Equal(t, Online, ConnectionStatus(reordered))
}

func TestCounter_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Counter
		wantErr bool
	}{
		{"number", `12`, 12, false},
		{"string", `"34"`, 34, false},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage", `"abc"`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c Counter
			err := json.Unmarshal([]byte(tc.input), &c)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c)
		})
	}
}

func TestZoneEnvironment(t *testing.T) {
	subs := []Subscription{
		{ID: "1", Config: `{"environment":"universal"}`},
		{ID: "2", Config: `{"environment":"kubernetes","mode":"zone"}`},
		{ID: "3"},
	}
	assert.Equal(t, "kubernetes", ZoneEnvironment(subs))
	assert.Equal(t, "", ZoneEnvironment(nil))
	assert.Equal(t, "", ZoneEnvironment([]Subscription{{Config: "not json"}}))
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Online", Online.Label())
	assert.Equal(t, "Offline", Offline.Label())
	assert.Equal(t, "Partially degraded", PartiallyDegraded.Label())
	assert.Equal(t, "custom", Status("custom").Label())
}
