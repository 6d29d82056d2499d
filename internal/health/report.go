package health

import (
	"time"

	"github.com/imamik/nodecycle/internal/config"
)

// WarningKind classifies a finding.
type WarningKind string

// Warning kinds.
const (
	WarnClusterUnreachable WarningKind = "cluster-unreachable"
	WarnProbe              WarningKind = "probe"
	WarnNodeNotReady       WarningKind = "node-not-ready"
	WarnNodeCordoned       WarningKind = "node-cordoned"
	WarnUnhealthyPods      WarningKind = "unhealthy-pods"
	WarnOutOfSync          WarningKind = "out-of-sync"
	WarnVolumeState        WarningKind = "volume-state"
	WarnReplicaPlacement   WarningKind = "replica-placement"
	WarnAuditIncomplete    WarningKind = "audit-incomplete"
)

// Warning is a non-fatal finding the operator has to acknowledge.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// VolumeIssue is a volume not in an expected attachment or robustness state.
type VolumeIssue struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Robustness string `json:"robustness"`
	Node       string `json:"node,omitempty"`
}

// NodeEvent is a recent warning event about the target node.
type NodeEvent struct {
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
	Count   int32     `json:"count"`
	Last    time.Time `json:"last"`
}

// Report is an immutable snapshot of cluster health.
type Report struct {
	Node        string      `json:"node"`
	Role        config.Role `json:"role"`
	GeneratedAt time.Time   `json:"generated_at"`

	Reachable bool `json:"reachable"`
	Live      bool `json:"live"`
	Ready     bool `json:"ready"`

	NodeReady         bool `json:"node_ready"`
	NodeUnschedulable bool `json:"node_unschedulable"`

	UnhealthyPods     int      `json:"unhealthy_pods"`
	UnhealthyPodNames []string `json:"unhealthy_pod_names,omitempty"`

	// OutOfSyncApps is nil when the reconciler is not installed.
	OutOfSyncApps  *int     `json:"out_of_sync_apps,omitempty"`
	OutOfSyncNames []string `json:"out_of_sync_names,omitempty"`

	StoragePresent bool `json:"storage_present"`
	// StorageUnknown is set when the storage namespace could not be looked
	// up. Absence is never assumed from an error.
	StorageUnknown      bool              `json:"storage_unknown,omitempty"`
	VolumeIssues        []VolumeIssue     `json:"volume_issues,omitempty"`
	PlacementViolations []string          `json:"placement_violations,omitempty"`
	SurvivingNodes      []string          `json:"surviving_nodes,omitempty"`
	StorageSettings     map[string]string `json:"storage_settings,omitempty"`

	NodeEvents []NodeEvent `json:"node_events,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`
	Notes    []string  `json:"notes,omitempty"`
}

// HasWarnings reports whether the operator has anything to acknowledge.
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// WarningsOf returns the warnings of kind.
func (r *Report) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}
