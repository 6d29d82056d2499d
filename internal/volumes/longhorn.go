package volumes

import (
	"context"
	"fmt"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// Longhorn resources.
var (
	VolumeGVR  = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "volumes"}
	ReplicaGVR = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "replicas"}
	SettingGVR = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "settings"}
)

// Attachment states.
const (
	StateAttached  = "attached"
	StateDetached  = "detached"
	StateAttaching = "attaching"
	StateDetaching = "detaching"
)

// Robustness values.
const (
	RobustnessHealthy  = "healthy"
	RobustnessDegraded = "degraded"
	RobustnessFaulted  = "faulted"
	RobustnessUnknown  = "unknown"
)

// LoggedSettings are the settings recorded at audit time.
var LoggedSettings = []string{
	"node-drain-policy",
	"node-down-pod-deletion-policy",
	"default-replica-count",
	"replica-soft-anti-affinity",
	"replica-auto-balance",
	"auto-salvage",
}

// Replica is one copy of a volume.
type Replica struct {
	Name    string
	Node    string
	Healthy bool
}

// Volume is the observed state of a Longhorn volume.
type Volume struct {
	Name       string
	State      string
	Robustness string
	Node       string
	Replicas   []Replica
}

// OnNode reports whether the volume is still bound to node in any state
// other than detached.
func (v Volume) OnNode(node string) bool {
	return v.Node == node && v.State != StateDetached
}

// Expected reports whether the volume is in a state that needs no attention:
// detached, or attached and healthy.
func (v Volume) Expected() bool {
	switch v.State {
	case StateDetached:
		return true
	case StateAttached:
		return v.Robustness == RobustnessHealthy
	default:
		return false
	}
}

// HealthyReplicaOn reports whether a healthy replica lives on any of nodes.
func (v Volume) HealthyReplicaOn(nodes map[string]bool) bool {
	for _, r := range v.Replicas {
		if r.Healthy && nodes[r.Node] {
			return true
		}
	}
	return false
}

// Reader reads Longhorn custom resources.
type Reader struct {
	client    dynamic.Interface
	namespace string
	timeout   time.Duration
}

// NewReader creates a Reader for the Longhorn namespace.
func NewReader(client dynamic.Interface, namespace string, timeout time.Duration) *Reader {
	return &Reader{client: client, namespace: namespace, timeout: timeout}
}

// List returns every volume with its replicas, sorted by name.
func (r *Reader) List(ctx context.Context) ([]Volume, error) {
	vols, err := r.volumes(ctx)
	if err != nil {
		return nil, err
	}

	replicas, err := r.list(ctx, ReplicaGVR)
	if err != nil {
		return nil, err
	}
	byVolume := make(map[string][]Replica)
	for _, item := range replicas {
		volume, _, _ := unstructured.NestedString(item.Object, "spec", "volumeName")
		byVolume[volume] = append(byVolume[volume], replicaFrom(item))
	}

	for i := range vols {
		vols[i].Replicas = byVolume[vols[i].Name]
	}
	return vols, nil
}

// AttachedTo returns the volumes still bound to node.
func (r *Reader) AttachedTo(ctx context.Context, node string) ([]Volume, error) {
	vols, err := r.volumes(ctx)
	if err != nil {
		return nil, err
	}
	var attached []Volume
	for _, v := range vols {
		if v.OnNode(node) {
			attached = append(attached, v)
		}
	}
	return attached, nil
}

// Settings returns the value of each named setting that exists.
func (r *Reader) Settings(ctx context.Context, names ...string) (map[string]string, error) {
	items, err := r.list(ctx, SettingGVR)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make(map[string]string)
	for _, item := range items {
		if len(wanted) > 0 && !wanted[item.GetName()] {
			continue
		}
		value, _, _ := unstructured.NestedString(item.Object, "value")
		out[item.GetName()] = value
	}
	return out, nil
}

func (r *Reader) volumes(ctx context.Context) ([]Volume, error) {
	items, err := r.list(ctx, VolumeGVR)
	if err != nil {
		return nil, err
	}
	vols := make([]Volume, 0, len(items))
	for _, item := range items {
		vols = append(vols, volumeFrom(item))
	}
	sort.Slice(vols, func(i, j int) bool { return vols[i].Name < vols[j].Name })
	return vols, nil
}

func (r *Reader) list(ctx context.Context, gvr schema.GroupVersionResource) ([]unstructured.Unstructured, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	list, err := r.client.Resource(gvr).Namespace(r.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", gvr.Resource, err)
	}
	return list.Items, nil
}

func volumeFrom(u unstructured.Unstructured) Volume {
	state, _, _ := unstructured.NestedString(u.Object, "status", "state")
	robustness, _, _ := unstructured.NestedString(u.Object, "status", "robustness")
	node, _, _ := unstructured.NestedString(u.Object, "status", "currentNodeID")
	return Volume{Name: u.GetName(), State: state, Robustness: robustness, Node: node}
}

func replicaFrom(u unstructured.Unstructured) Replica {
	node, _, _ := unstructured.NestedString(u.Object, "spec", "nodeID")
	failedAt, _, _ := unstructured.NestedString(u.Object, "spec", "failedAt")
	healthyAt, _, _ := unstructured.NestedString(u.Object, "spec", "healthyAt")
	current, _, _ := unstructured.NestedString(u.Object, "status", "currentState")
	return Replica{
		Name:    u.GetName(),
		Node:    node,
		Healthy: failedAt == "" && (healthyAt != "" || current == "running"),
	}
}
