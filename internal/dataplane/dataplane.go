// Package dataplane projects dataplane and zone proxy overviews into list rows.
package dataplane

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rflorenc/mesh-workbench/internal/insight"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

const (
	ServiceTag  = "kuma.io/service"
	ProtocolTag = "kuma.io/protocol"
	ZoneTag     = "kuma.io/zone"
)

// Gateway types as reported in networking.gateway.type. Kuma omits the field for
// delegated gateways.
const (
	TypeStandard  = "STANDARD"
	TypeBuiltin   = "BUILTIN"
	TypeDelegated = "DELEGATED"
)

type Health struct {
	Ready bool `json:"ready"`
}

type Inbound struct {
	Port        int               `json:"port"`
	ServicePort int               `json:"servicePort,omitempty"`
	Address     string            `json:"address,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Health      *Health           `json:"health,omitempty"`
	State       string            `json:"state,omitempty"`
}

// Ready reports whether the inbound can receive traffic.
func (i Inbound) Ready() bool {
	if i.State == "NotReady" {
		return false
	}
	return i.Health == nil || i.Health.Ready
}

type Gateway struct {
	Type string            `json:"type,omitempty"`
	Tags map[string]string `json:"tags,omitempty"`
}

type Networking struct {
	Address           string    `json:"address"`
	AdvertisedAddress string    `json:"advertisedAddress,omitempty"`
	Inbound           []Inbound `json:"inbound,omitempty"`
	Gateway           *Gateway  `json:"gateway,omitempty"`
}

type Spec struct {
	Networking Networking `json:"networking"`
}

type MTLS struct {
	CertificateExpirationTime *time.Time `json:"certificateExpirationTime,omitempty"`
	IssuedBackend             string     `json:"issuedBackend,omitempty"`
}

type Insight struct {
	Subscriptions []insight.Subscription `json:"subscriptions,omitempty"`
	MTLS          *MTLS                  `json:"mTLS,omitempty"`
}

// Overview is the payload of /meshes/{mesh}/dataplanes/_overview items.
type Overview struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	Mesh             string            `json:"mesh"`
	CreationTime     *time.Time        `json:"creationTime,omitempty"`
	ModificationTime *time.Time        `json:"modificationTime,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
	Dataplane        Spec              `json:"dataplane"`
	DataplaneInsight Insight           `json:"dataplaneInsight"`
}

// FromResource decodes a raw overview item.
func FromResource(r models.Resource) (*Overview, error) {
	var ov Overview
	if err := r.Decode(&ov); err != nil {
		return nil, fmt.Errorf("decoding dataplane overview %q: %w", r.Name(), err)
	}
	return &ov, nil
}

// IsGateway reports whether the dataplane is a gateway.
func (ov *Overview) IsGateway() bool {
	return ov.Dataplane.Networking.Gateway != nil
}

// GatewayType returns STANDARD for sidecars, otherwise BUILTIN or DELEGATED.
func (ov *Overview) GatewayType() string {
	gw := ov.Dataplane.Networking.Gateway
	if gw == nil {
		return TypeStandard
	}
	if strings.EqualFold(gw.Type, TypeBuiltin) {
		return TypeBuiltin
	}
	return TypeDelegated
}

// Tags returns every tag value per key across the gateway and all inbounds,
// in declaration order without duplicates.
func (ov *Overview) Tags() map[string][]string {
	out := map[string][]string{}
	add := func(tags map[string]string) {
		for k, v := range tags {
			if !contains(out[k], v) {
				out[k] = append(out[k], v)
			}
		}
	}
	if gw := ov.Dataplane.Networking.Gateway; gw != nil {
		add(gw.Tags)
	}
	for _, in := range ov.Dataplane.Networking.Inbound {
		add(in.Tags)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Status computes the connection status and, when degraded, the reasons.
func (ov *Overview) Status() (insight.Status, []string) {
	subs := ov.DataplaneInsight.Subscriptions
	if insight.ConnectionStatus(subs) == insight.Offline {
		return insight.Offline, nil
	}
	if ov.IsGateway() {
		return insight.Online, nil
	}

	inbounds := ov.Dataplane.Networking.Inbound
	var reasons []string
	for _, in := range inbounds {
		if !in.Ready() {
			reasons = append(reasons, fmt.Sprintf("Inbound on port %d is not ready (%s: %s)", in.Port, ServiceTag, in.Tags[ServiceTag]))
		}
	}
	switch {
	case len(inbounds) > 0 && len(reasons) == len(inbounds):
		return insight.Offline, reasons
	case len(reasons) > 0:
		return insight.PartiallyDegraded, reasons
	}
	return insight.Online, nil
}

// Summarize builds the list row for a dataplane overview.
func (ov *Overview) Summarize() models.ResourceSummary {
	status, reasons := ov.Status()
	sum := insight.Summarize(ov.DataplaneInsight.Subscriptions)
	tags := ov.Tags()

	fields := map[string]string{
		"name":             ov.Name,
		"type":             ov.GatewayType(),
		"service":          strings.Join(tags[ServiceTag], ", "),
		"protocol":         strings.Join(tags[ProtocolTag], ", "),
		"zone":             zoneOf(ov.Labels, tags),
		"status":           status.Label(),
		"address":          ov.Dataplane.Networking.Address,
		"dp_version":       sum.DpVersion,
		"envoy_version":    sum.EnvoyVersion,
		"last_connected":   FormatTime(sum.LastConnected),
		"last_updated":     FormatTime(sum.LastUpdated),
		"total_updates":    strconv.FormatUint(sum.TotalUpdates, 10),
		"rejected_updates": strconv.FormatUint(sum.TotalRejected, 10),
		"created":          FormatTime(ov.CreationTime),
		"modified":         FormatTime(ov.ModificationTime),
	}
	if mtls := ov.DataplaneInsight.MTLS; mtls != nil {
		fields["certificate_expiration"] = FormatTime(mtls.CertificateExpirationTime)
	}

	return models.ResourceSummary{
		Name:     ov.Name,
		Mesh:     ov.Mesh,
		Type:     ov.Type,
		Status:   string(status),
		Reasons:  reasons,
		Warnings: sum.Warnings,
		Labels:   ov.Labels,
		Fields:   fields,
	}
}

func zoneOf(labels map[string]string, tags map[string][]string) string {
	if z := labels[ZoneTag]; z != "" {
		return z
	}
	return strings.Join(tags[ZoneTag], ", ")
}

// FormatTime renders t in RFC 3339, or "" when unset.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
