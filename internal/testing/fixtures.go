package testing

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

// Namespaces used by fixtures.
const (
	LonghornNamespace = "longhorn-system"
	ArgoNamespace     = "argocd"
)

var (
	longhornVolumes  = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "volumes"}
	longhornReplicas = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "replicas"}
	longhornSettings = schema.GroupVersionResource{Group: "longhorn.io", Version: "v1beta2", Resource: "settings"}
	argoApplications = schema.GroupVersionResource{Group: "argoproj.io", Version: "v1alpha1", Resource: "applications"}
)

// NewDynamicClient returns a fake dynamic client that can list the Longhorn
// and Argo CD resources.
func NewDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), map[schema.GroupVersionResource]string{
		longhornVolumes:  "VolumeList",
		longhornReplicas: "ReplicaList",
		longhornSettings: "SettingList",
		argoApplications: "ApplicationList",
	}, objects...)
}

// NodeOption mutates a node fixture.
type NodeOption func(*corev1.Node)

// Unschedulable marks the node cordoned.
func Unschedulable() NodeOption {
	return func(n *corev1.Node) { n.Spec.Unschedulable = true }
}

// NotReady sets the Ready condition to False.
func NotReady() NodeOption {
	return func(n *corev1.Node) { n.Status.Conditions[0].Status = corev1.ConditionFalse }
}

// ControlPlane adds the control-plane role label.
func ControlPlane() NodeOption {
	return func(n *corev1.Node) { n.Labels["node-role.kubernetes.io/control-plane"] = "true" }
}

// Node returns a Ready node.
func Node(name string, opts ...NodeOption) *corev1.Node {
	n := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: map[string]string{"kubernetes.io/hostname": name}},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// PodOption mutates a pod fixture.
type PodOption func(*corev1.Pod)

// OwnedByDaemonSet sets a DaemonSet controller reference.
func OwnedByDaemonSet(name string) PodOption {
	return func(p *corev1.Pod) {
		controller := true
		p.OwnerReferences = []metav1.OwnerReference{{
			APIVersion: "apps/v1",
			Kind:       "DaemonSet",
			Name:       name,
			UID:        "ds-uid",
			Controller: &controller,
		}}
	}
}

// OwnedByReplicaSet sets a ReplicaSet controller reference.
func OwnedByReplicaSet(name string) PodOption {
	return func(p *corev1.Pod) {
		controller := true
		p.OwnerReferences = []metav1.OwnerReference{{
			APIVersion: "apps/v1",
			Kind:       "ReplicaSet",
			Name:       name,
			UID:        "rs-uid",
			Controller: &controller,
		}}
	}
}

// Mirror marks the pod as a static pod mirror.
func Mirror() PodOption {
	return func(p *corev1.Pod) {
		if p.Annotations == nil {
			p.Annotations = map[string]string{}
		}
		p.Annotations[corev1.MirrorPodAnnotationKey] = "mirror"
	}
}

// Phase sets the pod phase.
func Phase(phase corev1.PodPhase) PodOption {
	return func(p *corev1.Pod) { p.Status.Phase = phase }
}

// Pod returns a running pod in namespace scheduled to node.
func Pod(namespace, name, node string, opts ...PodOption) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec:       corev1.PodSpec{NodeName: node},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Namespace returns a namespace object.
func Namespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

// DaemonSet returns a daemon set object. Pods built with OwnedByDaemonSet
// need it present for the drain filters to recognize them.
func DaemonSet(namespace, name string) *appsv1.DaemonSet {
	return &appsv1.DaemonSet{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
}

// LonghornVolume returns a volume with the given attachment state.
func LonghornVolume(name, state, node string) *unstructured.Unstructured {
	robustness := "healthy"
	if state == "detached" {
		robustness = "unknown"
	}
	return LonghornVolumeWithRobustness(name, state, node, robustness)
}

// LonghornVolumeWithRobustness returns a volume with explicit robustness.
func LonghornVolumeWithRobustness(name, state, node, robustness string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "longhorn.io/v1beta2",
		"kind":       "Volume",
		"metadata":   map[string]any{"name": name, "namespace": LonghornNamespace},
		"spec":       map[string]any{"numberOfReplicas": int64(2)},
		"status": map[string]any{
			"state":         state,
			"robustness":    robustness,
			"currentNodeID": node,
		},
	}}
}

// LonghornReplica returns a replica of volume on node.
func LonghornReplica(volume, node string, healthy bool) *unstructured.Unstructured {
	spec := map[string]any{"volumeName": volume, "nodeID": node}
	current := "running"
	if healthy {
		spec["healthyAt"] = "2026-01-01T00:00:00Z"
	} else {
		spec["failedAt"] = "2026-01-01T00:00:00Z"
		current = "error"
	}
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "longhorn.io/v1beta2",
		"kind":       "Replica",
		"metadata":   map[string]any{"name": fmt.Sprintf("%s-r-%s", volume, node), "namespace": LonghornNamespace},
		"spec":       spec,
		"status":     map[string]any{"currentState": current},
	}}
}

// LonghornSetting returns a setting object.
func LonghornSetting(name, value string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "longhorn.io/v1beta2",
		"kind":       "Setting",
		"metadata":   map[string]any{"name": name, "namespace": LonghornNamespace},
		"value":      value,
	}}
}

// ArgoApplication returns an Argo CD application with the given status.
func ArgoApplication(name, sync, health string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "argoproj.io/v1alpha1",
		"kind":       "Application",
		"metadata":   map[string]any{"name": name, "namespace": ArgoNamespace},
		"status": map[string]any{
			"sync":   map[string]any{"status": sync},
			"health": map[string]any{"status": health},
		},
	}}
}
