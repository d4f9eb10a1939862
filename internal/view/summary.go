package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rflorenc/mesh-workbench/internal/dataplane"
	"github.com/rflorenc/mesh-workbench/internal/insight"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

const namespaceLabel = "k8s.kuma.io/namespace"

// Summarize projects a raw item of rt into a list row. Items that do not decode
// into their typed overview fall back to the generic projection.
func Summarize(rt models.ResourceType, r models.Resource) models.ResourceSummary {
	switch {
	case strings.Contains(rt.Path, "/dataplanes/_overview"):
		if ov, err := dataplane.FromResource(r); err == nil {
			return ov.Summarize()
		}
	case rt.Name == "zones":
		if ov, err := dataplane.ZoneFromResource(r); err == nil {
			return ov.Summarize()
		}
	case rt.Name == "zoneingresses" || rt.Name == "zoneegresses":
		if ov, err := dataplane.ZoneProxyFromResource(r); err == nil {
			return ov.Summarize()
		}
	case rt.Name == "services":
		return summarizeServiceInsight(r)
	case rt.Name == "meshes":
		return summarizeMesh(r)
	case rt.Policy:
		return summarizePolicy(r)
	}
	return summarizeGeneric(r)
}

func summarizeGeneric(r models.Resource) models.ResourceSummary {
	labels := r.Labels()
	fields := map[string]string{
		"name":     r.Name(),
		"type":     r.Type(),
		"created":  r.String("creationTime"),
		"modified": r.String("modificationTime"),
		"zone":     labels[dataplane.ZoneTag],
		"state":    r.String("spec", "state"),
	}
	if addr := r.String("networking", "address"); addr != "" {
		fields["address"] = addr
	}
	return models.ResourceSummary{
		Name:   r.Name(),
		Mesh:   r.Mesh(),
		Type:   r.Type(),
		Labels: labels,
		Fields: fields,
	}
}

func summarizeMesh(r models.Resource) models.ResourceSummary {
	sum := summarizeGeneric(r)
	sum.Fields["mtls"] = orDash(r.String("mtls", "enabledBackend"))
	sum.Fields["metrics"] = orDash(r.String("metrics", "enabledBackend"))
	sum.Fields["ca_backends"] = strconv.Itoa(len(r.Slice("mtls", "backends")))
	sum.Fields["locality_aware"] = strconv.FormatBool(r.Bool("routing", "localityAwareLoadBalancing"))
	return sum
}

// summarizeServiceInsight reads a service insight. Its status already follows
// the online/offline/partially_degraded/not_available vocabulary.
func summarizeServiceInsight(r models.Resource) models.ResourceSummary {
	sum := summarizeGeneric(r)
	status := r.String("status")
	online := r.Int("dataplanes", "online")
	total := r.Int("dataplanes", "total")
	if total == 0 {
		total = online + r.Int("dataplanes", "offline")
	}
	sum.Status = status
	sum.Fields["status"] = insight.Status(status).Label()
	sum.Fields["service_type"] = r.String("serviceType")
	sum.Fields["address"] = r.String("addressPort")
	sum.Fields["dataplanes"] = fmt.Sprintf("%d/%d", online, total)
	return sum
}

func summarizePolicy(r models.Resource) models.ResourceSummary {
	sum := summarizeGeneric(r)
	if kind := r.String("spec", "targetRef", "kind"); kind != "" {
		ref := kind
		if name := r.String("spec", "targetRef", "name"); name != "" {
			ref += ":" + name
		}
		sum.Fields["target_ref"] = ref
	}
	sum.Fields["namespace"] = sum.Labels[namespaceLabel]
	return sum
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
