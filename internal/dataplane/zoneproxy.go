package dataplane

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rflorenc/mesh-workbench/internal/insight"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

type ZoneProxyNetworking struct {
	Address           string `json:"address,omitempty"`
	AdvertisedAddress string `json:"advertisedAddress,omitempty"`
	Port              int    `json:"port,omitempty"`
	AdvertisedPort    int    `json:"advertisedPort,omitempty"`
}

type ZoneProxySpec struct {
	Zone       string              `json:"zone,omitempty"`
	Networking ZoneProxyNetworking `json:"networking"`
}

// ZoneProxyOverview is an item of /zoneingresses/_overview or /zoneegresses/_overview.
// Only one of the ingress or egress halves is set.
type ZoneProxyOverview struct {
	Type               string            `json:"type"`
	Name               string            `json:"name"`
	CreationTime       *time.Time        `json:"creationTime,omitempty"`
	Labels             map[string]string `json:"labels,omitempty"`
	ZoneIngress        *ZoneProxySpec    `json:"zoneIngress,omitempty"`
	ZoneIngressInsight *Insight          `json:"zoneIngressInsight,omitempty"`
	ZoneEgress         *ZoneProxySpec    `json:"zoneEgress,omitempty"`
	ZoneEgressInsight  *Insight          `json:"zoneEgressInsight,omitempty"`
}

// ZoneProxyFromResource decodes a raw zone ingress or egress overview.
func ZoneProxyFromResource(r models.Resource) (*ZoneProxyOverview, error) {
	var ov ZoneProxyOverview
	if err := r.Decode(&ov); err != nil {
		return nil, fmt.Errorf("decoding zone proxy overview %q: %w", r.Name(), err)
	}
	return &ov, nil
}

func (ov *ZoneProxyOverview) spec() ZoneProxySpec {
	switch {
	case ov.ZoneIngress != nil:
		return *ov.ZoneIngress
	case ov.ZoneEgress != nil:
		return *ov.ZoneEgress
	}
	return ZoneProxySpec{}
}

func (ov *ZoneProxyOverview) subscriptions() []insight.Subscription {
	switch {
	case ov.ZoneIngressInsight != nil:
		return ov.ZoneIngressInsight.Subscriptions
	case ov.ZoneEgressInsight != nil:
		return ov.ZoneEgressInsight.Subscriptions
	}
	return nil
}

// Address returns the advertised host:port when set, otherwise the local one.
func (ov *ZoneProxyOverview) Address() string {
	n := ov.spec().Networking
	host, port := n.Address, n.Port
	if n.AdvertisedAddress != "" {
		host, port = n.AdvertisedAddress, n.AdvertisedPort
	}
	if host == "" {
		return ""
	}
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Summarize builds the list row for a zone proxy.
func (ov *ZoneProxyOverview) Summarize() models.ResourceSummary {
	subs := ov.subscriptions()
	status := insight.ConnectionStatus(subs)
	sum := insight.Summarize(subs)

	zone := ov.spec().Zone
	if zone == "" {
		zone = ov.Labels[ZoneTag]
	}
	return models.ResourceSummary{
		Name:     ov.Name,
		Type:     ov.Type,
		Status:   string(status),
		Warnings: sum.Warnings,
		Labels:   ov.Labels,
		Fields: map[string]string{
			"name":           ov.Name,
			"zone":           zone,
			"address":        ov.Address(),
			"status":         status.Label(),
			"last_connected": FormatTime(sum.LastConnected),
			"last_updated":   FormatTime(sum.LastUpdated),
			"envoy_version":  sum.EnvoyVersion,
			"dp_version":     sum.DpVersion,
			"created":        FormatTime(ov.CreationTime),
		},
	}
}

// ZoneOverview is an item of /zones/_overview.
type ZoneOverview struct {
	Type         string     `json:"type"`
	Name         string     `json:"name"`
	CreationTime *time.Time `json:"creationTime,omitempty"`
	Zone         struct {
		Enabled *bool `json:"enabled,omitempty"`
	} `json:"zone"`
	ZoneInsight Insight `json:"zoneInsight"`
}

// ZoneFromResource decodes a raw zone overview.
func ZoneFromResource(r models.Resource) (*ZoneOverview, error) {
	var ov ZoneOverview
	if err := r.Decode(&ov); err != nil {
		return nil, fmt.Errorf("decoding zone overview %q: %w", r.Name(), err)
	}
	return &ov, nil
}

// Enabled defaults to true when the zone does not say otherwise.
func (ov *ZoneOverview) Enabled() bool {
	return ov.Zone.Enabled == nil || *ov.Zone.Enabled
}

// Summarize builds the list row for a zone. Disabled zones are reported Offline.
func (ov *ZoneOverview) Summarize() models.ResourceSummary {
	subs := ov.ZoneInsight.Subscriptions
	status := insight.ConnectionStatus(subs)
	if !ov.Enabled() {
		status = insight.Offline
	}
	sum := insight.Summarize(subs)
	return models.ResourceSummary{
		Name:     ov.Name,
		Type:     ov.Type,
		Status:   string(status),
		Warnings: sum.Warnings,
		Fields: map[string]string{
			"name":           ov.Name,
			"zone_version":   sum.CpVersion,
			"environment":    insight.ZoneEnvironment(subs),
			"status":         status.Label(),
			"last_connected": FormatTime(sum.LastConnected),
			"created":        FormatTime(ov.CreationTime),
		},
	}
}
