// Package insight aggregates the xDS/KDS subscription records the control plane
// keeps for dataplanes, zone proxies and zones.
package insight

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Counter is a uint64 the control plane may encode either as a JSON number or,
// following protobuf JSON rules, as a string.
type Counter uint64

func (c *Counter) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*c = Counter(n)
	return nil
}

// Stats are the discovery response counters of one subscription.
type Stats struct {
	ResponsesSent         Counter `json:"responsesSent"`
	ResponsesAcknowledged Counter `json:"responsesAcknowledged"`
	ResponsesRejected     Counter `json:"responsesRejected"`
}

// SubscriptionStatus holds the counters of a subscription.
type SubscriptionStatus struct {
	LastUpdateTime *time.Time `json:"lastUpdateTime,omitempty"`
	Total          Stats      `json:"total"`
}

// ComponentVersion describes one binary in a version report.
type ComponentVersion struct {
	Version          string `json:"version"`
	GitTag           string `json:"gitTag,omitempty"`
	GitCommit        string `json:"gitCommit,omitempty"`
	BuildDate        string `json:"buildDate,omitempty"`
	KumaCpCompatible *bool  `json:"kumaCpCompatible,omitempty"`
	KumaDpCompatible *bool  `json:"kumaDpCompatible,omitempty"`
}

// Version is the version report attached to a subscription.
type Version struct {
	KumaDp *ComponentVersion `json:"kumaDp,omitempty"`
	Envoy  *ComponentVersion `json:"envoy,omitempty"`
	KumaCp *ComponentVersion `json:"kumaCp,omitempty"`
}

// Subscription is one connection of a proxy or zone to a control-plane instance.
type Subscription struct {
	ID                     string             `json:"id"`
	ControlPlaneInstanceID string             `json:"controlPlaneInstanceId"`
	GlobalInstanceID       string             `json:"globalInstanceId,omitempty"`
	ConnectTime            *time.Time         `json:"connectTime,omitempty"`
	DisconnectTime         *time.Time         `json:"disconnectTime,omitempty"`
	Status                 SubscriptionStatus `json:"status"`
	Version                *Version           `json:"version,omitempty"`
	Config                 string             `json:"config,omitempty"` // zones only, JSON encoded
}

// Connected reports whether the subscription is still open.
func (s Subscription) Connected() bool {
	return s.ConnectTime != nil && s.DisconnectTime == nil
}

// Summary is the aggregate of all subscriptions of one insight.
type Summary struct {
	Connected     bool          `json:"connected"`
	TotalUpdates  uint64        `json:"totalUpdates"`
	TotalRejected uint64        `json:"totalRejectedUpdates"`
	LastConnected *time.Time    `json:"lastConnected,omitempty"`
	LastUpdated   *time.Time    `json:"lastUpdated,omitempty"`
	DpVersion     string        `json:"dpVersion,omitempty"`
	EnvoyVersion  string        `json:"envoyVersion,omitempty"`
	CpVersion     string        `json:"cpVersion,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Latest        *Subscription `json:"-"`
}

const (
	WarningDpCpIncompatible    = "kuma-dp version is not compatible with the control plane"
	WarningEnvoyDpIncompatible = "envoy version is not compatible with kuma-dp"
)

// Summarize folds subscriptions into a Summary. Later subscriptions win for
// version information; counters are summed over all of them.
func Summarize(subs []Subscription) Summary {
	var sum Summary
	for i := range subs {
		s := subs[i]
		if s.Connected() {
			sum.Connected = true
		}
		if s.ConnectTime != nil && (sum.LastConnected == nil || s.ConnectTime.After(*sum.LastConnected)) {
			sum.LastConnected = s.ConnectTime
		}
		if t := s.Status.LastUpdateTime; t != nil && (sum.LastUpdated == nil || t.After(*sum.LastUpdated)) {
			sum.LastUpdated = t
		}
		sum.TotalUpdates += uint64(s.Status.Total.ResponsesSent)
		sum.TotalRejected += uint64(s.Status.Total.ResponsesRejected)
		if v := s.Version; v != nil {
			if v.KumaDp != nil && v.KumaDp.Version != "" {
				sum.DpVersion = v.KumaDp.Version
			}
			if v.Envoy != nil && v.Envoy.Version != "" {
				sum.EnvoyVersion = v.Envoy.Version
			}
			if v.KumaCp != nil && v.KumaCp.Version != "" {
				sum.CpVersion = v.KumaCp.Version
			}
		}
	}
	if len(subs) > 0 {
		sum.Latest = &subs[len(subs)-1]
		if v := sum.Latest.Version; v != nil {
			if v.KumaDp != nil && v.KumaDp.KumaCpCompatible != nil && !*v.KumaDp.KumaCpCompatible {
				sum.Warnings = append(sum.Warnings, WarningDpCpIncompatible)
			}
			if v.Envoy != nil && v.Envoy.KumaDpCompatible != nil && !*v.Envoy.KumaDpCompatible {
				sum.Warnings = append(sum.Warnings, WarningEnvoyDpIncompatible)
			}
		}
	}
	return sum
}

// Status is the connection state shown for a resource.
type Status string

const (
	Online            Status = "online"
	Offline           Status = "offline"
	PartiallyDegraded Status = "partially_degraded"
	NotAvailable      Status = "not_available"
)

// Label returns the human readable form of a status.
func (s Status) Label() string {
	switch s {
	case Online:
		return "Online"
	case Offline:
		return "Offline"
	case PartiallyDegraded:
		return "Partially degraded"
	case NotAvailable:
		return "Not available"
	}
	return string(s)
}

// ConnectionStatus is Online when any subscription is open.
func ConnectionStatus(subs []Subscription) Status {
	for _, s := range subs {
		if s.Connected() {
			return Online
		}
	}
	return Offline
}

// zoneConfig is the part of a zone subscription config the workbench reads.
type zoneConfig struct {
	Environment string `json:"environment"`
}

// ZoneEnvironment returns the environment ("kubernetes" or "universal") a zone
// reported in its latest subscription, or "".
func ZoneEnvironment(subs []Subscription) string {
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].Config == "" {
			continue
		}
		var cfg zoneConfig
		if err := json.Unmarshal([]byte(subs[i].Config), &cfg); err == nil && cfg.Environment != "" {
			return cfg.Environment
		}
	}
	return ""
}
